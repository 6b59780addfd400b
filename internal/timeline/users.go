package timeline

import (
	"errors"

	"go.uber.org/zap"

	"github.com/weftfeed/weft/internal/feed"
	"github.com/weftfeed/weft/internal/storage"
)

// UserResolver maps parsed feed authors onto persisted users.
type UserResolver struct {
	store *storage.Store
	log   *zap.SugaredLogger
}

func NewUserResolver(store *storage.Store, log *zap.SugaredLogger) *UserResolver {
	return &UserResolver{store: store, log: log}
}

// Resolve returns the stored user for an author, creating one on first sight.
// Authors missing a stable URI, numeric id or username cannot be stored;
// Resolve returns nil for those and the caller must drop the owning entry.
// An existing record is returned unchanged even if the author's details have
// since changed on the server.
func (r *UserResolver) Resolve(server string, author *feed.Author) (*storage.User, error) {
	if author == nil || author.URI == "" || author.UserID == nil || author.Username == "" {
		return nil, nil
	}

	existing, err := r.store.GetUser(server, author.URI)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	name := author.DisplayName
	if name == "" {
		name = author.Username
	}

	user := &storage.User{
		Server:     server,
		ProfileURI: author.URI,
		UserID:     *author.UserID,
		Name:       name,
		ScreenName: author.Username,
		Bio:        author.Bio,
		Avatars:    make([]storage.Avatar, 0, len(author.Avatars)),
	}
	for _, av := range author.Avatars {
		user.Avatars = append(user.Avatars, storage.Avatar{
			URL:      av.URL,
			MimeType: av.MimeType,
			Width:    av.Width,
			Height:   av.Height,
		})
	}

	if err := r.store.SaveUser(user); err != nil {
		return nil, err
	}
	r.log.Debugf("created user %s on %s", user.ScreenName, server)
	return user, nil
}

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	firebase "github.com/isqad/firebase-auth-service/pkg/service"
	"google.golang.org/grpc"
)

type ctxKey string

const (
	// IdentityContextKey is used to extract the caller identity from the
	// request context
	IdentityContextKey ctxKey = "identity"

	guestSessionName = "_camhive_guest"
	guestIDKey       = "guest_id"
)

// Identity is who the request acts as. Anonymous viewers get a sticky
// guest id from a signed cookie so their preview window can be tracked
// server-side.
type Identity struct {
	UserID        string
	Authenticated bool
}

// AuthFailFunc is function that is called when authentication failed
type AuthFailFunc func(w http.ResponseWriter, r *http.Request, err error)

// AuthHandler is optional handler for mocking in tests
type AuthHandler func(next http.Handler) http.Handler

var (
	xAuth             = http.CanonicalHeaderKey("X-Auth")
	ErrEmptyAuthToken = errors.New("empty auth token")
)

// Authenticator verifies tokens against the external identity service and
// assigns guest identities to anonymous viewers.
type Authenticator struct {
	Addr         string
	AuthFailFunc AuthFailFunc
	StubHandler  AuthHandler

	cookieStore *sessions.CookieStore
}

func NewAuthenticator(addr string, cookieSecret []byte) *Authenticator {
	return &Authenticator{
		Addr:        addr,
		cookieStore: sessions.NewCookieStore(cookieSecret),
	}
}

// Middleware requires a verified token. Broadcaster mutations go through
// it.
func (m *Authenticator) Middleware() AuthHandler {
	if m.StubHandler != nil {
		return m.StubHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := m.verify(r)
			if err != nil {
				m.authFailed(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GuestMiddleware accepts a verified token when one is present, otherwise
// hands out a guest identity. Viewer endpoints go through it so the
// anonymous preview works without an account.
func (m *Authenticator) GuestMiddleware() AuthHandler {
	if m.StubHandler != nil {
		return m.StubHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity *Identity

			if r.Header.Get(xAuth) != "" {
				verified, err := m.verify(r)
				if err != nil {
					m.authFailed(w, r, err)
					return
				}
				identity = verified
			} else {
				guest, err := m.guestIdentity(w, r)
				if err != nil {
					m.authFailed(w, r, err)
					return
				}
				identity = guest
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *Authenticator) verify(r *http.Request) (*Identity, error) {
	token := r.Header.Get(xAuth)
	if token == "" {
		return nil, ErrEmptyAuthToken
	}

	conn, err := grpc.Dial(m.Addr, []grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithBlock(),
	}...)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	authClient := firebase.NewAuthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t, err := authClient.Verify(ctx, &firebase.Token{Token: token})
	if err != nil {
		return nil, err
	}

	return &Identity{UserID: t.GetUserId(), Authenticated: true}, nil
}

func (m *Authenticator) guestIdentity(w http.ResponseWriter, r *http.Request) (*Identity, error) {
	session, _ := m.cookieStore.Get(r, guestSessionName)

	guestID, ok := session.Values[guestIDKey].(string)
	if !ok || guestID == "" {
		guestID = "guest-" + uuid.NewString()
		session.Values[guestIDKey] = guestID
		if err := session.Save(r, w); err != nil {
			return nil, err
		}
	}

	return &Identity{UserID: guestID, Authenticated: false}, nil
}

func (m *Authenticator) authFailed(w http.ResponseWriter, r *http.Request, err error) {
	if m.AuthFailFunc != nil {
		m.AuthFailFunc(w, r, err)
	} else {
		w.WriteHeader(http.StatusUnauthorized)
	}
}

// identityFromRequest извлекает Identity из контекста запроса
func identityFromRequest(r *http.Request) (*Identity, error) {
	identity, ok := r.Context().Value(IdentityContextKey).(*Identity)
	if !ok {
		return nil, errors.New("can't get identity from request context")
	}

	return identity, nil
}

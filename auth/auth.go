// Package auth protects the JSON API with API keys.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/a-h/respond"
	"gopkg.in/yaml.v3"
)

// New wraps next, only allowing requests that carry one of the keys. keys maps
// API keys to the name of the client they were issued to.
func New(log *slog.Logger, keys map[string]string, next http.Handler) *Auth {
	a := &Auth{
		log:  log,
		next: next,
	}
	for key, client := range keys {
		a.keys = append(a.keys, apiKey{hash: sha256.Sum256([]byte(key)), client: client})
	}
	return a
}

type apiKey struct {
	hash   [sha256.Size]byte
	client string
}

type Auth struct {
	log  *slog.Logger
	next http.Handler
	keys []apiKey
}

// LoadFromFile reads a YAML (or JSON) map of API keys to client names.
func LoadFromFile(name string) (keys map[string]string, err error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read keys file: %w", err)
	}
	if err = yaml.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("auth: failed to parse keys file: %w", err)
	}
	for key, client := range keys {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("auth: empty API key for client %q", client)
		}
	}
	return keys, nil
}

type clientContextKey int

const clientKey clientContextKey = 0

// GetClient returns the name of the client that made the request.
func GetClient(r *http.Request) (client string, ok bool) {
	client, ok = r.Context().Value(clientKey).(string)
	return
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// lookup compares against every key, so the time taken does not depend on
// which key matched.
func (a *Auth) lookup(key string) (client string, ok bool) {
	hash := sha256.Sum256([]byte(key))
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare(hash[:], k.hash[:]) == 1 {
			client, ok = k.client, true
		}
	}
	return client, ok
}

func (a *Auth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := requestKey(r)
	if key == "" {
		respond.WithError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	client, ok := a.lookup(key)
	if !ok {
		a.log.Warn("invalid API key", slog.String("path", r.URL.Path), slog.String("remoteAddr", r.RemoteAddr))
		respond.WithError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	r = r.WithContext(context.WithValue(r.Context(), clientKey, client))
	a.next.ServeHTTP(w, r)
}

// Package revision produces the short identifiers used as version keys.
package revision

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-git/go-git/v5"
)

// DefaultLength matches `git rev-parse --short=10`.
const DefaultLength = 10

var keyPattern = regexp.MustCompile(`^[0-9a-f]{4,40}$`)

// Source returns the identifier of the current workspace state.
type Source interface {
	Revision(ctx context.Context) (string, error)
}

// Valid reports whether key looks like an abbreviated commit hash.
func Valid(key string) bool {
	return keyPattern.MatchString(key)
}

// Git reads HEAD of the repository containing Path.
type Git struct {
	Path   string
	Length int
}

func (g Git) Revision(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := g.Path
	if path == "" {
		path = "."
	}

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}

	length := g.Length
	if length <= 0 {
		length = DefaultLength
	}
	hash := head.Hash().String()
	if length > len(hash) {
		length = len(hash)
	}
	return hash[:length], nil
}

// Static always returns the same key.
type Static string

func (s Static) Revision(ctx context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no revision configured")
	}
	return string(s), nil
}

type contextKey struct{}

// NewContext returns a context carrying an explicit revision key.
func NewContext(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, contextKey{}, key)
}

// FromContext returns the key stored by NewContext, if any.
func FromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(contextKey{}).(string)
	return key, ok && key != ""
}

// Override prefers a key carried in the context and otherwise asks Fallback.
type Override struct {
	Fallback Source
}

func (o Override) Revision(ctx context.Context) (string, error) {
	if key, ok := FromContext(ctx); ok {
		return key, nil
	}
	if o.Fallback == nil {
		return "", errors.New("no revision in context")
	}
	return o.Fallback.Revision(ctx)
}

// Package schema defines the users GraphQL schema, its data, and an executor
// that answers queries against it.
package schema

import (
	"context"
	"slices"
)

// SDL is the schema served by the local GraphQL endpoint.
const SDL = `
enum UserKind {
  ADMIN
  USER
  GUEST
}

type User {
  id: Int!
  kind: UserKind!
  name: String!
  friends: [User!]!
}

type Query {
  users: [User!]!
  "Fetch a URL and return the response body text."
  request(url: String!): String!
}
`

// UserKind mirrors the UserKind enum.
type UserKind string

const (
	KindAdmin UserKind = "ADMIN"
	KindUser  UserKind = "USER"
	KindGuest UserKind = "GUEST"
)

// User is a single row of the users list.
type User struct {
	ID   int
	Kind UserKind
	Name string
}

// Resolver supplies the data behind the schema's fields.
type Resolver interface {
	Users(ctx context.Context) ([]User, error)
	Friends(ctx context.Context, u User) ([]User, error)
	Request(ctx context.Context, url string) (string, error)
}

// Store is the in-memory Resolver backing the server.
type Store struct {
	users   []User
	fetcher *Fetcher
}

// DefaultUsers is the seed data. Both users share id 1.
func DefaultUsers() []User {
	return []User{
		{ID: 1, Kind: KindAdmin, Name: "user1"},
		{ID: 1, Kind: KindGuest, Name: "user2"},
	}
}

// NewStore returns a Store serving users. fetcher backs the request field;
// a nil fetcher makes every request call fail.
func NewStore(users []User, fetcher *Fetcher) *Store {
	return &Store{users: slices.Clone(users), fetcher: fetcher}
}

// Users returns a copy of the stored users.
func (s *Store) Users(context.Context) ([]User, error) {
	return slices.Clone(s.users), nil
}

// Friends is always empty.
func (s *Store) Friends(context.Context, User) ([]User, error) {
	return []User{}, nil
}

// Request fetches url through the configured Fetcher.
func (s *Store) Request(ctx context.Context, url string) (string, error) {
	if s.fetcher == nil {
		return "", errFetchDisabled
	}
	return s.fetcher.Fetch(ctx, url)
}

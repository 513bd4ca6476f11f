package domain

import "strings"

type Owner struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// DisplayName joins first and last name, falling back to the first name alone.
func (o Owner) DisplayName() string {
	name := strings.TrimSpace(o.FirstName)
	if last := strings.TrimSpace(o.LastName); last != "" {
		name += " " + last
	}
	return name
}

type Destination struct {
	ID    int64
	Title string
}

type BotIdentity struct {
	ID        int64
	FirstName string
	Username  string
}

// Mapping is the owner id -> destination chat id relay table.
type Mapping map[int64]int64

func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for owner, dest := range m {
		out[owner] = dest
	}
	return out
}

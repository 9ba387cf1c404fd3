// Package workload generates deterministic synthetic users and tasks for the
// database workers. The same seed always yields the same records, so every
// target in a comparison run writes identical data.
package workload

import (
	"fmt"
	mrand "math/rand"
	"strings"
)

// User is a row of the user table.
type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Email    string `db:"email"`
	Password string `db:"password"`
}

// Task is a row of the tasks table.
type Task struct {
	ID          int64  `db:"id"`
	UserID      int64  `db:"user_id"`
	Title       string `db:"title"`
	Description string `db:"description"`
}

// Config controls workload generation parameters.
type Config struct {
	NumUsers      int
	NumSmallUsers int
	Seed          int64
}

// Dataset is everything a worker writes during one benchmark.
type Dataset struct {
	Users      []User
	SmallUsers []User
	// Tasks holds one task per small user, referencing user ids 1..n as
	// assigned after the small users are inserted into an emptied table.
	Tasks []Task
}

// Generator produces deterministic datasets from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Generate builds the full dataset.
func (g *Generator) Generate() Dataset {
	ds := Dataset{
		Users:      make([]User, 0, g.cfg.NumUsers),
		SmallUsers: make([]User, 0, g.cfg.NumSmallUsers),
		Tasks:      make([]Task, 0, g.cfg.NumSmallUsers),
	}

	for i := 0; i < g.cfg.NumUsers; i++ {
		ds.Users = append(ds.Users, g.user(fmt.Sprintf("user%d@example.com", i)))
	}

	for i := 0; i < g.cfg.NumSmallUsers; i++ {
		ds.SmallUsers = append(ds.SmallUsers, g.user(fmt.Sprintf("smalluser%d@example.com", i)))
	}

	for userID := int64(1); userID <= int64(g.cfg.NumSmallUsers); userID++ {
		ds.Tasks = append(ds.Tasks, Task{
			UserID:      userID,
			Title:       g.sentence(4, 8),
			Description: g.paragraph(3, 6),
		})
	}

	return ds
}

func (g *Generator) user(email string) User {
	return User{
		Username: g.username(),
		Email:    email,
		Password: g.password(16),
	}
}

var (
	adjectives = []string{
		"quiet", "brave", "lucky", "rapid", "sunny", "misty", "clever",
		"silent", "golden", "crimson", "gentle", "wild", "frozen", "bright",
	}
	nouns = []string{
		"otter", "falcon", "maple", "river", "comet", "badger", "harbor",
		"willow", "ember", "canyon", "lynx", "meadow", "pebble", "raven",
	}
	words = []string{
		"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing",
		"elit", "sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore",
		"et", "dolore", "magna", "aliqua", "enim", "ad", "minim", "veniam",
		"quis", "nostrud", "exercitation", "ullamco", "laboris", "nisi",
	}
)

const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789_-"

func (g *Generator) username() string {
	return fmt.Sprintf("%s_%s%d",
		adjectives[g.rng.Intn(len(adjectives))],
		nouns[g.rng.Intn(len(nouns))],
		g.rng.Intn(1000),
	)
}

func (g *Generator) password(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = passwordAlphabet[g.rng.Intn(len(passwordAlphabet))]
	}

	return string(buf)
}

func (g *Generator) sentence(minWords, maxWords int) string {
	n := minWords + g.rng.Intn(maxWords-minWords+1)
	parts := make([]string, n)

	for i := range parts {
		parts[i] = words[g.rng.Intn(len(words))]
	}

	s := strings.Join(parts, " ")

	return strings.ToUpper(s[:1]) + s[1:] + "."
}

func (g *Generator) paragraph(minSentences, maxSentences int) string {
	n := minSentences + g.rng.Intn(maxSentences-minSentences+1)
	parts := make([]string, n)

	for i := range parts {
		parts[i] = g.sentence(5, 12)
	}

	return strings.Join(parts, " ")
}

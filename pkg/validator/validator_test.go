package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name     string    `validate:"required,max=10"`
	Type     string    `validate:"eventtype"`
	Elig     string    `validate:"eligibility"`
	Tags     []string  `validate:"dive,tag"`
	Limit    int       `validate:"omitempty,positive"`
	Deadline time.Time `validate:"future"`
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	ok := sample{Name: "hack", Type: "Normal", Elig: "IIITOnly", Tags: []string{"tech", "ai-ml"}}
	assert.NoError(t, Validate(ctx, ok))

	cases := map[string]func(s *sample){
		"Field is required":                        func(s *sample) { s.Name = "" },
		"Field exceeds maximum length":             func(s *sample) { s.Name = "a very long name" },
		"Event type must be Normal or Merchandise": func(s *sample) { s.Type = "Concert" },
		"Eligibility must be All":                  func(s *sample) { s.Elig = "Everyone" },
		"Invalid format":                           func(s *sample) { s.Tags = []string{"Bad Tag"} },
		"Value must be positive":                   func(s *sample) { s.Limit = -1 },
		"Date must be in the future":               func(s *sample) { s.Deadline = time.Now().Add(-time.Hour) },
	}
	for want, mutate := range cases {
		s := ok
		mutate(&s)
		err := Validate(ctx, s)
		if assert.Error(t, err, want) {
			assert.Contains(t, err.Error(), want)
		}
	}
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("a@b.io", "email"))
	err := Var("nope", "email")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "Invalid email address")
	}
}

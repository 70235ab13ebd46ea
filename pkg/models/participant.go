// Package models defines the core domain models for document validation circuits.
package models

import (
	"slices"
	"strings"
	"time"
)

// Role is the action a participant performs on a step.
type Role string

const (
	RoleReviewer  Role = "reviewer"
	RoleValidator Role = "validator"
	RoleApprover  Role = "approver"
	RoleSigner    Role = "signer"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleReviewer, RoleValidator, RoleApprover, RoleSigner:
		return true
	default:
		return false
	}
}

// Participant is a person taking part in a circuit. Email is the identity key.
type Participant struct {
	Name         string `json:"name"                   validate:"required"`
	Email        string `json:"email"                  validate:"required"`
	Organization string `json:"organization,omitempty"`
}

// Matches reports whether the participant is identified by email, ignoring case.
func (p Participant) Matches(email string) bool {
	return NormalizeEmail(p.Email) == NormalizeEmail(email)
}

// NormalizeEmail returns the lookup form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParticipantRecord is a participant directory entry.
type ParticipantRecord struct {
	Participant

	Roles      []Role    `json:"roles"`
	UsageCount int       `json:"usage_count"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Touch records one more use of the participant with the given role.
func (r *ParticipantRecord) Touch(p Participant, role Role, at time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = at
	}

	// the latest name and organization win, the email key stays
	if p.Name != "" {
		r.Name = p.Name
	}

	if p.Organization != "" {
		r.Organization = p.Organization
	}

	if r.Email == "" {
		r.Email = p.Email
	}

	if role.Valid() && !slices.Contains(r.Roles, role) {
		r.Roles = append(r.Roles, role)
	}

	r.UsageCount++
	r.LastUsedAt = at
}

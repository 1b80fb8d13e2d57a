package alert

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an alert as reported by the Rede Alerta
// service. The values are the literal strings the service stores and echoes
// back; they are advisory display text except for StatusResolvido, which is
// terminal on the client side.
type Status string

const (
	StatusEnviado     Status = "Enviado"
	StatusEmAnalise   Status = "Em análise"
	StatusEmAndamento Status = "Em andamento"
	StatusResolvido   Status = "Resolvido"
)

// knownStatuses is the full enumeration accepted from the wire
var knownStatuses = map[Status]struct{}{
	StatusEnviado:     {},
	StatusEmAnalise:   {},
	StatusEmAndamento: {},
	StatusResolvido:   {},
}

// ParseStatus validates a raw status string against the known enumeration
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.TrimSpace(raw))
	_, ok := knownStatuses[s]
	return s, ok
}

// IsTerminal reports whether no further status transitions are accepted.
// Only StatusResolvido is terminal; ordering between the other states is
// left to the service.
func (s Status) IsTerminal() bool {
	return s == StatusResolvido
}

// Alert is a single community-submitted hazard report.
//
// ID is assigned by the service and stays zero while the create call is in
// flight; during that window the entry is identified by LocalRef, which the
// engine assigns and preserves across reconciliation.
type Alert struct {
	ID          int64     `json:"id"`
	LocalRef    uuid.UUID `json:"localRef"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	// NoFix marks records submitted without captured coordinates. The wire
	// still carries (0, 0) for those, so the flag is the only way to tell
	// them apart from a genuine null-island fix.
	NoFix     bool      `json:"noFix,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	// CreatedAtText holds the raw data_ocorrencia value when it is not a
	// parseable timestamp (the service emits placeholder text like "Hoje").
	CreatedAtText string `json:"createdAtText,omitempty"`
	// Pending is true while the create round trip has not confirmed the entry
	Pending bool `json:"pending,omitempty"`
}

// Draft is a report payload as entered by the user, before submission.
type Draft struct {
	Title       string  `json:"title" validate:"required"`
	Category    string  `json:"category"`
	Description string  `json:"description" validate:"required"`
	Location    string  `json:"location"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	// HasFix distinguishes captured coordinates from the (0, 0) default
	HasFix bool `json:"hasFix"`
}

// Normalize trims the user-entered text fields in place
func (d *Draft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Category = strings.TrimSpace(d.Category)
	d.Description = strings.TrimSpace(d.Description)
	d.Location = strings.TrimSpace(d.Location)
}

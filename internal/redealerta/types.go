package redealerta

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rede-alerta/alertsync/internal/alert"
)

// wireAlert is an alert object as the Rede Alerta service serializes it.
// The titulo field is optional: records created before the field existed
// come back without it.
type wireAlert struct {
	ID             int64   `json:"id"`
	Titulo         string  `json:"titulo,omitempty"`
	Tipo           string  `json:"tipo"`
	Descricao      string  `json:"descricao"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Status         string  `json:"status"`
	DataOcorrencia string  `json:"data_ocorrencia"`
}

// UnmarshalJSON tolerates data_ocorrencia arriving either as text (the
// service currently emits placeholder strings like "Hoje") or as an epoch
// seconds number from newer deployments.
func (w *wireAlert) UnmarshalJSON(data []byte) error {
	// Alias avoids infinite recursion back into this method
	type alias wireAlert
	aux := &struct {
		DataOcorrencia json.RawMessage `json:"data_ocorrencia"`
		*alias
	}{alias: (*alias)(w)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.DataOcorrencia) > 0 {
		var text string
		if err := json.Unmarshal(aux.DataOcorrencia, &text); err == nil {
			w.DataOcorrencia = text
			return nil
		}
		var epoch int64
		if err := json.Unmarshal(aux.DataOcorrencia, &epoch); err == nil {
			w.DataOcorrencia = time.Unix(epoch, 0).UTC().Format(time.RFC3339)
			return nil
		}
		return fmt.Errorf("data_ocorrencia has unsupported shape: %s", string(aux.DataOcorrencia))
	}

	return nil
}

// occurrenceLayouts are tried in order when interpreting data_ocorrencia.
// The service runs FastAPI, which emits naive ISO timestamps without a zone.
var occurrenceLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseOccurrence(raw string) (time.Time, bool) {
	for _, layout := range occurrenceLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toAlert converts a wire object into the domain entity. An unknown status
// value is a decode failure: the collection invariant requires every entry
// to carry a status from the defined enumeration.
func (w wireAlert) toAlert() (alert.Alert, error) {
	status, ok := alert.ParseStatus(w.Status)
	if !ok {
		return alert.Alert{}, fmt.Errorf("unknown alert status %q", w.Status)
	}

	a := alert.Alert{
		ID:          w.ID,
		Title:       w.Titulo,
		Category:    w.Tipo,
		Description: w.Descricao,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
		Status:      status,
		// Exact (0, 0) is the service's "location not captured" placeholder,
		// not a real fix
		NoFix: w.Latitude == 0 && w.Longitude == 0,
	}

	if t, ok := parseOccurrence(w.DataOcorrencia); ok {
		a.CreatedAt = t
	} else {
		a.CreatedAtText = w.DataOcorrencia
	}

	return a, nil
}

// createPayload is the POST /alertas/ request body
type createPayload struct {
	Titulo    string  `json:"titulo"`
	Tipo      string  `json:"tipo"`
	Descricao string  `json:"descricao"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// statusPayload is the PUT /alertas/{id}/status request body
type statusPayload struct {
	Status string `json:"status"`
}

// apiError is the service's structured error body. Detail is surfaced to
// the user verbatim when present.
type apiError struct {
	Detail string `json:"detail"`
}

// Region is a service region the user can pick during onboarding
type Region struct {
	ID   int64  `json:"id"`
	Nome string `json:"nome"`
}

// User is the profile record for the profile screen. The wire object also
// carries a senha field; it is deliberately not decoded.
type User struct {
	ID    int64  `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

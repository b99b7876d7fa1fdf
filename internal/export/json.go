package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/sitelog/internal/identity"
	"github.com/sadopc/sitelog/internal/store"
)

// Backup is a full snapshot of every collection. Credential hashes are
// never included.
type Backup struct {
	ExportedAt      time.Time               `json:"exportedAt"`
	Counts          map[string]int          `json:"counts"`
	Users           []identity.PublicUser   `json:"users"`
	Projects        []*store.Project        `json:"projects"`
	ProgressUpdates []*store.ProgressUpdate `json:"progressUpdates"`
	PaymentRequests []*store.PaymentRequest `json:"paymentRequests"`
	Vehicles        []*store.Vehicle        `json:"vehicles"`
	Drivers         []*store.Driver         `json:"drivers"`
}

// Tally fills in Counts from the collections.
func (b *Backup) Tally() {
	b.Counts = map[string]int{
		"users":           len(b.Users),
		"projects":        len(b.Projects),
		"progressUpdates": len(b.ProgressUpdates),
		"paymentRequests": len(b.PaymentRequests),
		"vehicles":        len(b.Vehicles),
		"drivers":         len(b.Drivers),
	}
}

func WriteJSON(w io.Writer, b *Backup) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return nil
}

func ToJSON(b *Backup, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	if err := WriteJSON(f, b); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}

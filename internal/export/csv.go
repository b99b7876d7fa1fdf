package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/sitelog/internal/store"
)

// WriteProgressCSV writes one row per progress update.
func WriteProgressCSV(out io.Writer, updates []*store.ProgressUpdate, projects map[string]*store.Project) error {
	w := csv.NewWriter(out)

	if err := w.Write([]string{"ID", "Project", "Date", "Completed Work", "Time Taken (h)", "Time Taken", "Latitude", "Longitude"}); err != nil {
		return err
	}

	for _, u := range updates {
		projectName := "Unknown"
		if p, ok := projects[u.ProjectID]; ok {
			projectName = p.Name
		}
		lat, lng := "", ""
		if u.Location != nil {
			lat = strconv.FormatFloat(u.Location.Latitude, 'f', 6, 64)
			lng = strconv.FormatFloat(u.Location.Longitude, 'f', 6, 64)
		}
		row := []string{
			u.ID,
			projectName,
			u.Date.Local().Format(time.RFC3339),
			strconv.FormatFloat(u.CompletedWork, 'f', -1, 64),
			strconv.FormatFloat(u.TimeTaken, 'f', -1, 64),
			formatHours(u.TimeTaken),
			lat,
			lng,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WritePaymentsCSV writes one row per purpose line of each payment request.
func WritePaymentsCSV(out io.Writer, payments []*store.PaymentRequest, projects map[string]*store.Project) error {
	w := csv.NewWriter(out)

	if err := w.Write([]string{"Payment ID", "Project", "Date", "Status", "Purpose", "Amount", "Images", "Remarks", "Total"}); err != nil {
		return err
	}

	for _, pr := range payments {
		projectName := "Unknown"
		if p, ok := projects[pr.ProjectID]; ok {
			projectName = p.Name
		}
		for _, purpose := range pr.Purposes {
			row := []string{
				pr.ID,
				projectName,
				pr.Date.Local().Format(time.RFC3339),
				string(pr.Status),
				string(purpose.Type),
				purpose.Amount.StringFixed(2),
				strconv.Itoa(len(purpose.Images)),
				purpose.Remarks,
				pr.TotalAmount.StringFixed(2),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

func ToCSV(updates []*store.ProgressUpdate, projects map[string]*store.Project, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if err := WriteProgressCSV(f, updates, projects); err != nil {
		return err
	}
	return f.Close()
}

func PaymentsToCSV(payments []*store.PaymentRequest, projects map[string]*store.Project, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if err := WritePaymentsCSV(f, payments, projects); err != nil {
		return err
	}
	return f.Close()
}

// formatHours renders fractional hours as HH:MM.
func formatHours(hours float64) string {
	mins := int64(math.Round(hours * 60))
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

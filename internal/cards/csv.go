package cards

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"hotspotctl/internal/model"
)

// WriteCSV writes cards to CSV with a fixed column order, for the print and
// export pipeline.
func WriteCSV(w io.Writer, cards []model.AccessCard) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"username",
		"password",
		"profile",
		"data_quota",
		"time_quota",
		"validity_days",
		"created_at",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, c := range cards {
		record := []string{
			c.Username,
			c.Password,
			c.Profile,
			c.DataQuota,
			c.TimeQuota,
			strconv.Itoa(c.ValidityDays),
			c.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

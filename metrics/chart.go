package metrics

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	chartDateFormat = "2006-01-02"
	csvTimeFormat   = "2006-01-02 15:04:05"
)

// MarshalJSON emits the chart payload with a fixed key order (x, young,
// mid, old, total, backlog) because the front-end chart library assigns
// series colors by position. Mid and backlog are omitted when absent.
func (c *AgeCurve) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeSeries := func(name string, v interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:", name)
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}

	dates := make([]string, len(c.Days))
	for i, d := range c.Days {
		dates[i] = d.Format(chartDateFormat)
	}
	if err := writeSeries("x", dates); err != nil {
		return nil, err
	}
	if err := writeSeries("young", c.Young); err != nil {
		return nil, err
	}
	if c.Mid != nil {
		if err := writeSeries("mid", c.Mid); err != nil {
			return nil, err
		}
	}
	if err := writeSeries("old", c.Old); err != nil {
		return nil, err
	}
	if err := writeSeries("total", c.Total); err != nil {
		return nil, err
	}
	if c.Backlog != nil {
		if err := writeSeries("backlog", c.Backlog); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// bucketLabels derives the human column headers from the cutoffs, e.g.
// "< 30 days, > 30 days" or "< 30 days, 30-60 days, > 60 days".
func (c *AgeCurve) bucketLabels() []string {
	if len(c.Cutoffs) == 2 {
		return []string{
			fmt.Sprintf("< %d days", c.Cutoffs[0]),
			fmt.Sprintf("%d-%d days", c.Cutoffs[0], c.Cutoffs[1]),
			fmt.Sprintf("> %d days", c.Cutoffs[1]),
		}
	}
	return []string{
		fmt.Sprintf("< %d days", c.Cutoffs[0]),
		fmt.Sprintf("> %d days", c.Cutoffs[0]),
	}
}

// CSV renders the curve as a day-per-row table for download.
func (c *AgeCurve) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"date"}, c.bucketLabels()...)
	header = append(header, "total")
	if c.Backlog != nil {
		header = append(header, "backlog")
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for i, day := range c.Days {
		row := []string{day.Format(csvTimeFormat), strconv.Itoa(c.Young[i])}
		if c.Mid != nil {
			row = append(row, strconv.Itoa(c.Mid[i]))
		}
		row = append(row, strconv.Itoa(c.Old[i]), strconv.Itoa(c.Total[i]))
		if c.Backlog != nil {
			row = append(row, strconv.Itoa(c.Backlog[i]))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// OpenTicketsCSV renders open-ticket rows for download. An empty listing
// produces an empty body, not a lone header.
func OpenTicketsCSV(rows []OpenTicketRow, cat TicketCategory) ([]byte, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"_id", "owner", "ip"}
	if cat.Kind == KindRiskyServices {
		header = append(header, "hostname", "port", "service", "category")
	} else {
		header = append(header, "port", "name", "cve", "kev", "severity")
	}
	header = append(header,
		"time_opened", "days_since_first_detected",
		"time_first_reported", "days_since_first_reported", "days_to_report")
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for i := range rows {
		r := &rows[i]
		row := []string{r.ID, r.Owner, r.IP}
		if cat.Kind == KindRiskyServices {
			row = append(row, r.Hostname, strconv.Itoa(r.Port), r.Service, r.Category)
		} else {
			row = append(row, strconv.Itoa(r.Port), r.Name, r.CVE,
				strconv.FormatBool(r.KEV), strconv.Itoa(int(r.Severity)))
		}
		row = append(row,
			r.TimeOpened.Format(csvTimeFormat),
			formatDays(r.DaysSinceFirstDetected),
			formatTimePtr(r.FirstReported),
			formatDaysPtr(r.DaysSinceFirstReported),
			formatDaysPtr(r.DaysToReport))
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ClosedTicketsCSV renders closed-ticket rows for download.
func ClosedTicketsCSV(rows []ClosedTicketRow, cat TicketCategory) ([]byte, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"_id", "owner", "ip"}
	if cat.Kind == KindRiskyServices {
		header = append(header, "hostname", "port", "service", "category")
	} else {
		header = append(header, "port", "name", "cve", "kev", "severity")
	}
	header = append(header, "time_opened", "time_closed", "days_to_close")
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for i := range rows {
		r := &rows[i]
		row := []string{r.ID, r.Owner, r.IP}
		if cat.Kind == KindRiskyServices {
			row = append(row, r.Hostname, strconv.Itoa(r.Port), r.Service, r.Category)
		} else {
			row = append(row, strconv.Itoa(r.Port), r.Name, r.CVE,
				strconv.FormatBool(r.KEV), strconv.Itoa(int(r.Severity)))
		}
		row = append(row,
			r.TimeOpened.Format(csvTimeFormat),
			r.TimeClosed.Format(csvTimeFormat),
			formatDays(r.DaysToClose))
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatDays(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatDaysPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatDays(*v)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(csvTimeFormat)
}

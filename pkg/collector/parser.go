// Package collector pkg/collector/parser.go
package collector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/mfreeman451/flowwatch/pkg/metrics"
	"github.com/mfreeman451/flowwatch/pkg/models"
)

var (
	errEmptyStatsFile    = errors.New("empty device stats file")
	errMissingColumn     = errors.New("missing required column")
	errReadingStatsFile  = errors.New("error reading device stats file")
	errNegativeRate      = errors.New("negative bps value")
	errShortRow          = errors.New("row has fewer fields than header")
	errMalformedRate     = errors.New("malformed bps value")
	errMissingExporterID = errors.New("empty exporter address")
)

const (
	columnExporter  = "Exporter Address"
	columnInterface = "Interface"
	columnBps       = "Current NetFlow bps"

	// Rows without an interface column are per-exporter aggregates.
	defaultIface = "0"
)

// ParseDeviceStats parses the tab-separated exporter device stats file
// a flow collector serves. Malformed rows are discarded and logged with
// their line number; the rest of the batch is still produced.
func ParseDeviceStats(r io.Reader, collectorName string, observedAt time.Time) ([]models.Sample, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errEmptyStatsFile
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", errReadingStatsFile, err)
	}

	cols, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var samples []models.Sample

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			log.Printf("Collector %s: skipping line %d: %v", collectorName, line, err)
			metrics.ParseErrors.WithLabelValues(collectorName).Inc()

			continue
		}

		sample, err := parseRow(row, cols, collectorName, observedAt)
		if err != nil {
			log.Printf("Collector %s: skipping line %d (%q): %v",
				collectorName, line, strings.Join(row, "\t"), err)
			metrics.ParseErrors.WithLabelValues(collectorName).Inc()

			continue
		}

		samples = append(samples, sample)
	}

	return samples, nil
}

type columnIndex struct {
	exporter int
	iface    int // -1 when the file has no interface column
	bps      int
}

func headerIndex(header []string) (columnIndex, error) {
	cols := columnIndex{exporter: -1, iface: -1, bps: -1}

	for i, name := range header {
		switch strings.TrimSpace(name) {
		case columnExporter:
			cols.exporter = i
		case columnInterface:
			cols.iface = i
		case columnBps:
			cols.bps = i
		}
	}

	if cols.exporter == -1 {
		return cols, fmt.Errorf("%w: %q", errMissingColumn, columnExporter)
	}

	if cols.bps == -1 {
		return cols, fmt.Errorf("%w: %q", errMissingColumn, columnBps)
	}

	return cols, nil
}

func parseRow(row []string, cols columnIndex, collectorName string, observedAt time.Time) (models.Sample, error) {
	if len(row) <= cols.exporter || len(row) <= cols.bps {
		return models.Sample{}, errShortRow
	}

	exporter := strings.TrimSpace(row[cols.exporter])
	if exporter == "" {
		return models.Sample{}, errMissingExporterID
	}

	iface := defaultIface
	if cols.iface != -1 && len(row) > cols.iface {
		if v := strings.TrimSpace(row[cols.iface]); v != "" {
			iface = v
		}
	}

	bps, err := strconv.ParseFloat(strings.TrimSpace(row[cols.bps]), 64)
	if err != nil {
		return models.Sample{}, fmt.Errorf("%w: %w", errMalformedRate, err)
	}

	if bps < 0 {
		return models.Sample{}, fmt.Errorf("%w: %f", errNegativeRate, bps)
	}

	return models.Sample{
		Key:        models.InterfaceKey{Exporter: exporter, Iface: iface},
		Collector:  collectorName,
		Bps:        bps,
		ObservedAt: observedAt,
	}, nil
}

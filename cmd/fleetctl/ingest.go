package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fleet/internal/domain"
	"fleet/internal/service"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		shipmentID string
		file       string
		deviceID   string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a file of location reports for a shipment",
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := readReports(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			res, err := e.services.Tracking.IngestBatch(ctx, service.IngestRequest{
				ShipmentID: shipmentID,
				Reports:    reports,
				DeviceID:   deviceID,
			})
			if err != nil {
				return err
			}

			alerts := make([]map[string]any, 0, len(res.Alerts))
			for _, a := range res.Alerts {
				alerts = append(alerts, map[string]any{
					"severity":     a.Severity,
					"description":  a.Description,
					"location":     a.Location,
					"triggered_at": a.TriggeredAt,
				})
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"total":      res.Total,
				"successful": res.Successful,
				"failed":     res.Failed,
				"errors":     res.Errors,
				"statistics": res.Statistics,
				"alerts":     alerts,
			})
		},
	}
	cmd.Flags().StringVar(&shipmentID, "shipment", "", "shipment id")
	cmd.Flags().StringVar(&file, "file", "", "JSON file with a report array or {\"locations\": [...]}")
	cmd.Flags().StringVar(&deviceID, "device", "", "reporting device id")
	_ = cmd.MarkFlagRequired("shipment")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readReports accepts either a bare array of reports or the HTTP batch body.
func readReports(path string) ([]domain.LocationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}

	var reports []domain.LocationReport
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &reports); err != nil {
			return nil, fmt.Errorf("decode reports: %w", err)
		}
		return reports, nil
	}

	var body struct {
		Locations []domain.LocationReport `json:"locations"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return body.Locations, nil
}

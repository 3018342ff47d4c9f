package main

import (
	"encoding/json"
	"errors"
	"fleet-dispatch-service/internal/api/dto"
	"fleet-dispatch-service/internal/app"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newSuggestCmd(c *cli) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:     "suggest",
		Short:   "Compute assignment suggestions for a fleet snapshot",
		PreRunE: c.load,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readSnapshot(cmd, input)
			if err != nil {
				return err
			}

			svc, err := app.New(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			snap, err := req.Snapshot(svc.Location, time.Now())
			if err != nil {
				return err
			}

			d := svc.Engine.Dispatcher()
			opts := req.RunOptions(d.Params())
			s, err := svc.Engine.Suggest(cmd.Context(), snap, opts)
			if err != nil {
				return err
			}

			return writeOutput(cmd.OutOrStdout(), dto.NewSuggestionResponse(req.View(s, d.Cache(), opts, svc.Location)))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "snapshot JSON file, - for stdin")
	return cmd
}

func newETAsCmd(c *cli) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:     "etas",
		Short:   "Compute courier to order driving times for a fleet snapshot",
		PreRunE: c.load,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readSnapshot(cmd, input)
			if err != nil {
				return err
			}

			svc, err := app.New(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			snap, err := req.Snapshot(svc.Location, time.Now())
			if err != nil {
				return err
			}

			opts := req.RunOptions(svc.Engine.Dispatcher().Params())
			etas, calls, err := svc.Engine.ComputeETAs(cmd.Context(), snap, opts)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), dto.NewETAResponse(etas, calls))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "snapshot JSON file, - for stdin")
	return cmd
}

// readSnapshot decodes exactly one snapshot object, rejecting unknown fields.
func readSnapshot(cmd *cobra.Command, path string) (*dto.SnapshotRequest, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req dto.SnapshotRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode snapshot: input must contain only one JSON object")
	}
	return &req, nil
}

func writeOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

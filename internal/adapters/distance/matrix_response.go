package distance

import (
	"encoding/json"
	"fleet-dispatch-service/internal/ports"
	"fmt"
	"io"
)

type matrixValue struct {
	Value int64 `json:"value"`
}

type matrixElement struct {
	Status            string       `json:"status"`
	Duration          *matrixValue `json:"duration"`
	DurationInTraffic *matrixValue `json:"duration_in_traffic"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Rows         []matrixRow `json:"rows"`
}

// decodeMatrix parses a distance matrix body. A non-OK top level status or a
// row/element count that does not match the request fails the whole batch;
// a non-OK element only marks that cell.
func decodeMatrix(r io.Reader, nOrigins, nDestinations int) ([][]ports.DurationResult, error) {
	var mr matrixResponse
	if err := json.NewDecoder(r).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if mr.Status != "OK" {
		return nil, fmt.Errorf("matrix status %q: %s", mr.Status, mr.ErrorMessage)
	}

	if len(mr.Rows) != nOrigins {
		return nil, fmt.Errorf("expected %d rows; got %d", nOrigins, len(mr.Rows))
	}

	out := make([][]ports.DurationResult, nOrigins)
	for i, row := range mr.Rows {
		if len(row.Elements) != nDestinations {
			return nil, fmt.Errorf(
				"row %d length does not match destinations: elements=%d destinations=%d",
				i, len(row.Elements), nDestinations,
			)
		}

		out[i] = make([]ports.DurationResult, nDestinations)
		for j, el := range row.Elements {
			if el.Status != "OK" {
				continue
			}
			// Prefer the traffic aware duration when the API returns one.
			switch {
			case el.DurationInTraffic != nil:
				out[i][j] = ports.DurationResult{Seconds: el.DurationInTraffic.Value, OK: true}
			case el.Duration != nil:
				out[i][j] = ports.DurationResult{Seconds: el.Duration.Value, OK: true}
			}
		}
	}

	return out, nil
}

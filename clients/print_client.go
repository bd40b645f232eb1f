package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"go.uber.org/zap"
)

// noPrintersPlaceholder is what the print service lists when it finds no
// queue; it is not a printer.
const noPrintersPlaceholder = "No Zebra printers found"

// PrintClient hands label jobs to the print service over HTTP.
type PrintClient struct {
	http jsonClient
}

func NewPrintClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *PrintClient {
	return &PrintClient{http: newJSONClient("print service", baseURL, token, timeout, logger)}
}

func (p *PrintClient) Dispatch(ctx context.Context, req models.PrintRequest) error {
	return p.http.do(ctx, http.MethodPost, "/barcodes/print", req, nil)
}

type printersResponse struct {
	Printers []json.RawMessage `json:"printers"`
}

// ListPrinters accepts both plain queue names and {name, is_default}
// objects.
func (p *PrintClient) ListPrinters(ctx context.Context) ([]models.Printer, error) {
	var resp printersResponse
	if err := p.http.do(ctx, http.MethodGet, "/barcodes/printers", nil, &resp); err != nil {
		return nil, err
	}

	printers := make([]models.Printer, 0, len(resp.Printers))
	for _, raw := range resp.Printers {
		var pr models.Printer
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			pr.Name = name
		} else if err := json.Unmarshal(raw, &pr); err != nil {
			continue
		}
		pr.Name = strings.TrimSpace(pr.Name)
		if pr.Name == "" || pr.Name == noPrintersPlaceholder {
			continue
		}
		printers = append(printers, pr)
	}
	return printers, nil
}

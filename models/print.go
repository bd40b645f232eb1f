package models

// LabelRecord is what the printer renders for one batch.
type LabelRecord struct {
	Barcode  string `json:"barcode"`
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Size     string `json:"size"`
	Color    string `json:"color"`
	Quantity int    `json:"quantity"`
	Layers   int    `json:"layers,omitempty"`
	Serial   int    `json:"serial,omitempty"`
}

type PrintRequest struct {
	Barcodes    []LabelRecord `json:"barcodes"`
	Count       int           `json:"count"`
	PrinterName string        `json:"printer_name"`
}

// PrintOptions narrows a print call. An empty Barcodes list prints every
// printable row.
type PrintOptions struct {
	Count       int      `json:"count"`
	PrinterName string   `json:"printer_name"`
	Barcodes    []string `json:"barcodes,omitempty"`
}

type PrintResult struct {
	ImportID    string `json:"import_id"`
	Labels      int    `json:"labels"`
	Count       int    `json:"count"`
	PrinterName string `json:"printer_name"`
}

type Printer struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default,omitempty"`
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cyclopcam/sonoprep/pkg/framex"
	"github.com/cyclopcam/sonoprep/pkg/validate"
)

// Defaults are the values used when a request does not supply its own
type Defaults struct {
	ROI           framex.Rect `json:"roi"`           // Region of interest for cropping and for reduced-region detection
	ScanHeightMM  int         `json:"scanHeightMM" validate:"gt=0"`
	ScanWidthMM   int         `json:"scanWidthMM" validate:"gt=0"`
	Window        int         `json:"window" validate:"min=1,max=1000"` // Duplicate detection look-ahead
	ReducedROI    bool        `json:"reducedROI"`                       // Compare only the region of interest during detection
	DisplayWidth  int         `json:"displayWidth" validate:"min=16"`   // Size of frame previews
	DisplayHeight int         `json:"displayHeight" validate:"min=16"`  //
	ThumbWidth    int         `json:"thumbWidth" validate:"min=16"`     // Size of JPEG thumbnails
	ThumbHeight   int         `json:"thumbHeight" validate:"min=16"`    //
}

type Config struct {
	Listen     string   `json:"listen" validate:"required"`     // HTTP listen address, eg ":8090"
	Journal    string   `json:"journal"`                        // Path to the operation journal. Empty disables the journal.
	Extension  string   `json:"extension" validate:"required"`  // Frame file extension
	LedgerName string   `json:"ledgerName" validate:"required"` // Name of the ledger file inside a recording directory
	Watch      bool     `json:"watch"`                          // Watch the loaded directory for outside changes
	Defaults   Defaults `json:"defaults"`
}

// DefaultConfig matches the output of the scanner software
func DefaultConfig() *Config {
	return &Config{
		Listen:     ":8090",
		Journal:    "sonoprep-journal.sqlite",
		Extension:  "png",
		LedgerName: "data.txt",
		Watch:      true,
		Defaults: Defaults{
			ROI:           framex.Rect{Top: 228, Bottom: 878, Left: 476, Right: 1428},
			ScanHeightMM:  150,
			ScanWidthMM:   150,
			Window:        2,
			DisplayWidth:  800,
			DisplayHeight: 450,
			ThumbWidth:    320,
			ThumbHeight:   180,
		},
	}
}

// LoadConfig reads a JSON config file over the defaults.
// If filename is empty, or the file does not exist, the defaults are returned.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename != "" {
		raw, err := os.ReadFile(filename)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("Error loading %v: %w", filename, err)
		} else if err == nil {
			if err := json.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
			}
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("Invalid config %v: %w", filename, err)
	}
	return cfg, nil
}

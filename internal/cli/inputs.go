package cli

import (
	"os"

	"github.com/certifyhq/certgen/pkg/batch"
	"github.com/certifyhq/certgen/pkg/dataset"
	"github.com/certifyhq/certgen/pkg/fontcat"
	"github.com/certifyhq/certgen/pkg/template"
)

// loadInputs reads the background image and box layout, then resolves the
// font bytes every box needs. Tasks are left for the caller to fill in.
func (c *CLI) loadInputs(templatePath, layoutPath string) (*batch.Inputs, error) {
	bg, err := template.LoadBackground(templatePath)
	if err != nil {
		return nil, err
	}

	layout, err := template.LoadLayout(layoutPath)
	if err != nil {
		return nil, err
	}
	boxes := layout.Boxes
	for i := range boxes {
		if err := boxes[i].Validate(); err != nil {
			return nil, err
		}
	}

	catalog := fontcat.New(c.Config.FontDir)
	fonts := make(map[string][]byte)
	for _, b := range boxes {
		if _, ok := fonts[b.Font]; ok {
			continue
		}
		data, err := catalog.LoadBytes(b.Font)
		if err != nil {
			return nil, err
		}
		fonts[b.Font] = data
	}

	return &batch.Inputs{Background: bg, Boxes: boxes, FontData: fonts}, nil
}

// loadTasks reads the CSV dataset and builds the deduplicated task list for
// the layout's printed fields.
func loadTasks(dataPath string, boxes []template.Box) ([]dataset.Task, error) {
	f, err := os.Open(dataPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := dataset.ReadCSV(f)
	if err != nil {
		return nil, err
	}

	fields := template.Fields(boxes)
	if err := ds.RequireColumns(fields); err != nil {
		return nil, err
	}
	return dataset.BuildTasks(ds.Records, fields), nil
}

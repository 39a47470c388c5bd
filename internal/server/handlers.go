package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/certifyhq/certgen/pkg/archive"
	"github.com/certifyhq/certgen/pkg/batch"
	"github.com/certifyhq/certgen/pkg/buildinfo"
	"github.com/certifyhq/certgen/pkg/dataset"
	"github.com/certifyhq/certgen/pkg/errors"
	"github.com/certifyhq/certgen/pkg/history"
	"github.com/certifyhq/certgen/pkg/jobstore"
	"github.com/certifyhq/certgen/pkg/render"
	"github.com/certifyhq/certgen/pkg/template"
)

// progressSaveStride controls how often per-record progress is persisted.
const progressSaveStride = 50

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidBox, errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidColor, errors.ErrCodeInvalidLayout,
		errors.ErrCodeEmptyDataset, errors.ErrCodeMissingColumn:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeFontNotFound, errors.ErrCodeTemplateNotFound,
		errors.ErrCodeJobNotFound, errors.ErrCodeRunNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeCancelled:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(code),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

func (s *Server) handleFonts(w http.ResponseWriter, r *http.Request) {
	fonts, err := s.fonts.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fonts": fonts})
}

// parseTemplate reads the uploaded background image and box layout shared
// by /preview and /generate.
func (s *Server) parseTemplate(r *http.Request) (*batch.Inputs, error) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing multipart form")
	}

	file, _, err := r.FormFile("template")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTemplateNotFound, err, "template upload missing")
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading template upload")
	}
	bg, err := template.DecodeBackground(raw)
	if err != nil {
		return nil, err
	}

	boxesJSON := r.FormValue("boxes")
	if boxesJSON == "" {
		return nil, errors.New(errors.ErrCodeInvalidLayout, "boxes field is required")
	}
	var boxes []template.Box
	if err := json.Unmarshal([]byte(boxesJSON), &boxes); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLayout, err, "parsing boxes")
	}
	for i := range boxes {
		if err := boxes[i].Validate(); err != nil {
			return nil, err
		}
	}

	fonts := make(map[string][]byte)
	for _, b := range boxes {
		if _, ok := fonts[b.Font]; ok {
			continue
		}
		data, err := s.fonts.LoadBytes(b.Font)
		if err != nil {
			return nil, err
		}
		fonts[b.Font] = data
	}

	return &batch.Inputs{Background: bg, Boxes: boxes, FontData: fonts}, nil
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseTemplate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	record := make(map[string]string)
	if sample := r.FormValue("record"); sample != "" {
		if err := json.Unmarshal([]byte(sample), &record); err != nil {
			writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing record"))
			return
		}
	} else {
		for _, b := range template.Printable(in.Boxes) {
			record[b.Field] = "Sample Text"
		}
	}

	quality := formInt(r, "quality", render.DefaultQuality)
	rend, err := render.New(render.Options{
		Background: in.Background,
		Boxes:      in.Boxes,
		FontData:   in.FontData,
		Encoding:   render.EncodeJPEG,
		Quality:    quality,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	payload, err := rend.Render(record)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(payload)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseTemplate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	dataFile, _, err := r.FormFile("data")
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeEmptyDataset, err, "data upload missing"))
		return
	}
	defer dataFile.Close()
	ds, err := dataset.ReadCSV(dataFile)
	if err != nil {
		writeError(w, err)
		return
	}

	var fields []string
	for _, b := range template.Printable(in.Boxes) {
		fields = append(fields, b.Field)
	}
	if err := ds.RequireColumns(fields); err != nil {
		writeError(w, err)
		return
	}
	in.Tasks = dataset.BuildTasks(ds.Records, fields)

	formats, err := render.ParseFormats(formValueDefault(r, "formats", "jpg"))
	if err != nil {
		writeError(w, err)
		return
	}

	job := jobstore.New(0)
	if err := s.jobs.Set(r.Context(), job); err != nil {
		writeError(w, err)
		return
	}

	opts := batch.Options{
		Formats:  formats,
		Workers:  formInt(r, "workers", s.cfg.Workers),
		Quality:  formInt(r, "quality", s.cfg.Quality),
		BaseName: formValueDefault(r, "base_name", batch.DefaultBaseName),
		Exporter: archive.DirExporter{Dir: filepath.Join(s.cfg.ArtifactDir, job.ID)},
		Logger:   s.logger.With("job", job.ID),
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.registerCancel(job.ID, cancel)
	go s.runJob(runCtx, job, opts, *in)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  job.ID,
		"status": string(batch.PhaseLoading),
	})
}

// runJob drives one generation run and mirrors its progress into the job
// store. Runs on its own goroutine; ctx carries cancellation only.
func (s *Server) runJob(ctx context.Context, job *jobstore.Job, opts batch.Options, in batch.Inputs) {
	defer func() {
		if cancel := s.releaseCancel(job.ID); cancel != nil {
			cancel()
		}
	}()
	started := time.Now()
	bg := context.Background()

	opts.OnProgress = func(p batch.Progress) {
		stale := p.Phase == job.Progress.Phase &&
			p.CompletedCount%progressSaveStride != 0 &&
			p.CompletedCount != p.TotalCount
		job.Progress = p
		if stale {
			return
		}
		if err := s.jobs.Set(bg, job); err != nil {
			s.logger.Warn("persisting job progress", "job", job.ID, "error", err)
		}
	}

	sum, err := batch.New(opts).Run(ctx, in)
	if err != nil {
		job.Error = errors.UserMessage(err)
	}
	if sum != nil {
		job.Summary = sum
		for _, loc := range sum.Archives {
			job.Artifacts = append(job.Artifacts, jobstore.Artifact{
				Name: filepath.Base(loc),
				Path: loc,
			})
		}
	}
	if err := s.jobs.Set(bg, job); err != nil {
		s.logger.Warn("persisting job result", "job", job.ID, "error", err)
	}

	if s.hist != nil && sum != nil {
		var names []string
		for _, f := range opts.Formats {
			names = append(names, string(f))
		}
		rec := history.FromSummary(sum, opts.BaseName, names, started)
		if err := s.hist.Save(bg, rec); err != nil {
			s.logger.Warn("persisting run history", "run", sum.RunID, "error", err)
		}
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.lookupJob(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	job, err := s.lookupJob(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if cancel := s.releaseCancel(job.ID); cancel != nil {
		cancel()
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": job.ID, "status": "cancelling"})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	job, err := s.lookupJob(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	art := job.Artifact(name)
	if art == nil {
		writeError(w, errors.New(errors.ErrCodeNotFound, "artifact %s not found", name))
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	w.Header().Set("Content-Type", "application/zip")
	http.ServeFile(w, r, art.Path)
}

func (s *Server) lookupJob(r *http.Request) (*jobstore.Job, error) {
	id := chi.URLParam(r, "jobID")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errors.New(errors.ErrCodeJobNotFound, "job %s not found", id)
	}
	return job, nil
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := s.hist.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": recs})
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.hist.Get(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func formValueDefault(r *http.Request, key, def string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return def
}

func formInt(r *http.Request, key string, def int) int {
	v := r.FormValue(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

package panel

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"tracktap/internal/history"
	"tracktap/internal/logging"
	"tracktap/internal/playlist"
	"tracktap/internal/recorder"
	"tracktap/internal/recordings"
	"tracktap/internal/services"
)

const maxBodyBytes = 1 << 20

type acceptedResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type trackBody struct {
	Playlist string          `json:"playlist,omitempty"`
	Index    int             `json:"index,omitempty"`
	Track    *playlist.Track `json:"track,omitempty"`
	Manual   bool            `json:"manual,omitempty"`
}

type playlistBody struct {
	Playlist     string `json:"playlist"`
	SkipExisting *bool  `json:"skip_existing,omitempty"`
	Manual       bool   `json:"manual,omitempty"`
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "panel", "decode body", "invalid JSON body", err)
	}
	return nil
}

func (s *Server) handleRecordTrack(w http.ResponseWriter, r *http.Request) {
	var body trackBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := recorder.TrackRequest{PlaylistRef: body.Playlist, Index: body.Index, Manual: body.Manual}
	if body.Track != nil {
		req.Track = *body.Track
	}
	runID, err := s.recorder.StartTrack(s.captureContext(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logAccepted(r, runID, "track")
	writeJSON(w, http.StatusAccepted, acceptedResponse{RunID: runID, Status: "started"})
}

func (s *Server) handleRecordPlaylist(w http.ResponseWriter, r *http.Request) {
	var body playlistBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	runID, err := s.recorder.StartPlaylist(s.captureContext(), recorder.PlaylistRequest{
		Ref:          body.Playlist,
		SkipExisting: body.SkipExisting,
		Manual:       body.Manual,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logAccepted(r, runID, "playlist")
	writeJSON(w, http.StatusAccepted, acceptedResponse{RunID: runID, Status: "started"})
}

func (s *Server) logAccepted(r *http.Request, runID, kind string) {
	logging.WithContext(r.Context(), s.logger).Info("capture triggered from panel",
		logging.String(logging.FieldRunID, runID),
		logging.String("kind", kind),
		logging.String(logging.FieldEventType, "panel_capture_triggered"),
	)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.recorder.Tracker().Snapshot())
}

type playlistsResponse struct {
	Playlists []playlist.Summary `json:"playlists"`
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	list, err := s.recorder.Catalog().List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []playlist.Summary{}
	}
	writeJSON(w, http.StatusOK, playlistsResponse{Playlists: list})
}

type recordingsResponse struct {
	Folders   []recordings.Folder `json:"folders"`
	RootFiles []recordings.File   `json:"root_files"`
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	folders, err := s.library.Folders()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	root, err := s.library.RootFiles()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := recordingsResponse{Folders: folders, RootFiles: root}
	if resp.Folders == nil {
		resp.Folders = []recordings.Folder{}
	}
	if resp.RootFiles == nil {
		resp.RootFiles = []recordings.File{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path, err := s.library.Resolve(vars["folder"], vars["file"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", attachment(filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	folder := mux.Vars(r)["folder"]
	files, err := s.library.Files(folder)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(files) == 0 {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "panel", "archive", "no recordings in "+folder, nil))
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(recordings.ArchiveName(folder)))
	w.WriteHeader(http.StatusOK)
	if _, err := s.library.WriteArchive(w, folder); err != nil {
		// Headers are already sent; the client sees a truncated archive.
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "archive stream failed", "archive_failed",
			logging.String("folder", folder),
			logging.Error(err),
			logging.String(logging.FieldImpact, "client received an incomplete zip"),
		)
	}
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name))
}

type historyResponse struct {
	Runs []history.Run `json:"runs"`
}

type historyRunResponse struct {
	Run      history.Run     `json:"run"`
	Outcomes []history.Entry `json:"outcomes"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, historyResponse{Runs: []history.Run{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Runs: runs})
}

func (s *Server) handleHistoryRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "panel", "history", "history journal unavailable", nil))
		return
	}
	id := mux.Vars(r)["run"]
	run, err := s.history.GetRun(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.history.Outcomes(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, historyRunResponse{Run: run, Outcomes: entries})
}

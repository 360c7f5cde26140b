package api

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/cyclopcam/sonoprep/pkg/framex"
	"github.com/cyclopcam/sonoprep/pkg/validate"
	"github.com/cyclopcam/sonoprep/server/journal"
	"github.com/cyclopcam/sonoprep/server/recording"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

const maxRequestBodyBytes = 64 * 1024

func (s *Server) setupHttpRoutes() {
	logEveryRequest := false
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			if logEveryRequest {
				s.Log.Infof("HTTP %v %v", method, r.URL.Path)
			}
			handle(w, r, params)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/status", s.httpStatus)
	handle("POST", "/api/load", s.httpLoad)
	handle("POST", "/api/detect", s.httpDetect)
	handle("GET", "/api/duplicates", s.httpDuplicates)
	handle("POST", "/api/removeDuplicates", s.httpRemoveDuplicates)
	handle("POST", "/api/crop", s.httpCrop)
	handle("POST", "/api/flip", s.httpFlip)
	handle("POST", "/api/ledger", s.httpUpdateLedger)
	handle("POST", "/api/verify", s.httpVerify)
	handle("GET", "/api/frame/:index/preview", s.httpFramePreview)
	handle("GET", "/api/frame/:index/plot", s.httpFramePlot)
	handle("GET", "/api/frame/:index/thumbnail", s.httpFrameThumbnail)
	handle("GET", "/api/journal", s.httpJournal)

	// The websocket handler must not run inside www.Handle, because a panic after the
	// upgrade cannot be turned into an HTTP error.
	router.GET("/api/progress", s.httpProgress)

	s.httpRouter = router
}

// check panics with an HTTP status that matches the kind of err
func check(err error) {
	if err == nil {
		return
	}
	if kind := recording.ErrorKind(err); kind != "" {
		www.Panic(kind.HTTPStatus(), err.Error())
	}
	www.Check(err)
}

// readValidJSON reads the request body into obj, and validates it
func readValidJSON(w http.ResponseWriter, r *http.Request, obj any) {
	www.ReadJSON(w, r, obj, maxRequestBodyBytes)
	if err := validate.Struct(obj); err != nil {
		www.PanicBadRequestf("%v", err)
	}
}

// operationJSON is the response of a batch operation.
// A batch that partially failed is still a successful request, because files
// were modified. The failure is reported in Error, and the details in Result.
type operationJSON struct {
	Result    any    `json:"result"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

func sendOperation(w http.ResponseWriter, result any, err error) {
	var batchErr *recording.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		check(err)
	}
	resp := operationJSON{Result: result}
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorKind = string(recording.ErrorKind(err))
	}
	www.SendJSON(w, resp)
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	www.SendJSON(w, &pingJSON{Time: time.Now().Unix()})
}

func (s *Server) httpStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Recording.Status())
}

func (s *Server) httpLoad(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type loadJSON struct {
		Directory string `json:"directory" validate:"required"`
	}
	req := loadJSON{}
	readValidJSON(w, r, &req)
	details, err := s.Recording.Load(req.Directory)
	check(err)
	www.SendJSON(w, details)
}

func (s *Server) httpDetect(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type detectJSON struct {
		Window     *int         `json:"window" validate:"omitempty,min=1"`
		ReducedROI *bool        `json:"reducedROI"` // Compare only the region of interest
		ROI        *framex.Rect `json:"roi"`        // Used if ReducedROI is true. Defaults to the configured ROI.
	}
	req := detectJSON{}
	readValidJSON(w, r, &req)
	def := s.Config.Defaults
	p := recording.DetectParams{
		Window: def.Window,
	}
	if req.Window != nil {
		p.Window = *req.Window
	}
	reduced := def.ReducedROI
	if req.ReducedROI != nil {
		reduced = *req.ReducedROI
	}
	if reduced {
		roi := def.ROI
		if req.ROI != nil {
			roi = *req.ROI
		}
		p.ROI = &roi
	}
	candidates, err := s.Recording.Detect(p)
	check(err)
	www.SendJSON(w, candidates)
}

func (s *Server) httpDuplicates(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Recording.Duplicates())
}

func (s *Server) httpRemoveDuplicates(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	result, err := s.Recording.RemoveDuplicates()
	sendOperation(w, result, err)
}

func (s *Server) httpCrop(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type cropJSON struct {
		ROI          *framex.Rect `json:"roi"` // Defaults to the configured ROI
		ScanHeightMM *int         `json:"scanHeightMM" validate:"omitempty,gt=0"`
		ScanWidthMM  *int         `json:"scanWidthMM" validate:"omitempty,gt=0"`
	}
	req := cropJSON{}
	readValidJSON(w, r, &req)
	def := s.Config.Defaults
	p := recording.CropParams{
		ROI:          def.ROI,
		ScanHeightMM: def.ScanHeightMM,
		ScanWidthMM:  def.ScanWidthMM,
	}
	if req.ROI != nil {
		p.ROI = *req.ROI
	}
	if req.ScanHeightMM != nil {
		p.ScanHeightMM = *req.ScanHeightMM
	}
	if req.ScanWidthMM != nil {
		p.ScanWidthMM = *req.ScanWidthMM
	}
	result, err := s.Recording.Crop(p)
	sendOperation(w, result, err)
}

func (s *Server) httpFlip(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	result, err := s.Recording.FlipVertical()
	sendOperation(w, result, err)
}

func (s *Server) httpUpdateLedger(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type ledgerJSON struct {
		ScanHeightMM int `json:"scanHeightMM" validate:"gt=0"`
		ScanWidthMM  int `json:"scanWidthMM" validate:"gt=0"`
	}
	req := ledgerJSON{}
	readValidJSON(w, r, &req)
	check(s.Recording.UpdateLedger(req.ScanHeightMM, req.ScanWidthMM))
	www.SendOK(w)
}

func (s *Server) httpVerify(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	check(s.Recording.Verify())
	www.SendOK(w)
}

func (s *Server) frameParam(params httprouter.Params) *recording.Frame {
	index, err := strconv.Atoi(params.ByName("index"))
	if err != nil {
		www.PanicBadRequestf("Invalid frame index '%v'", params.ByName("index"))
	}
	frame, err := s.Recording.Frame(index)
	check(err)
	return frame
}

// roiParam reads the "roi" query parameter. If it is absent, the configured ROI is used.
// "roi=none" hides the region.
func (s *Server) roiParam(r *http.Request) *framex.Rect {
	v := www.QueryValue(r, "roi")
	if v == "none" {
		return nil
	}
	roi := s.Config.Defaults.ROI
	if v != "" {
		var err error
		roi, err = framex.ParseRect(v)
		if err != nil {
			www.PanicBadRequestf("%v", err)
		}
	}
	return &roi
}

func sendPNG(w http.ResponseWriter, encode func(buf *bytes.Buffer) error) {
	buf := bytes.Buffer{}
	www.Check(encode(&buf))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) httpFramePreview(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	frame := s.frameParam(params)
	img := framex.Preview(frame.Image, s.roiParam(r), s.Config.Defaults.DisplayWidth, s.Config.Defaults.DisplayHeight)
	sendPNG(w, func(buf *bytes.Buffer) error {
		return png.Encode(buf, img)
	})
}

func (s *Server) httpFramePlot(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	frame := s.frameParam(params)
	img := framex.Plot(frame.Image, s.roiParam(r), s.Config.Defaults.DisplayWidth, s.Config.Defaults.DisplayHeight)
	sendPNG(w, func(buf *bytes.Buffer) error {
		return png.Encode(buf, img)
	})
}

func (s *Server) httpFrameThumbnail(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	frame := s.frameParam(params)
	jpg, err := framex.Thumbnail(frame.Image, s.Config.Defaults.ThumbWidth, s.Config.Defaults.ThumbHeight)
	www.Check(err)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(jpg)
}

func (s *Server) httpJournal(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	limit := www.QueryInt(r, "limit")
	if limit <= 0 {
		limit = 100
	}
	ops := []*journal.Operation{}
	if s.Journal != nil {
		var err error
		ops, err = s.Journal.List(limit)
		www.Check(err)
	}
	www.SendJSON(w, ops)
}

package server

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/esimov/facefind"
	"github.com/esimov/facefind/www"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

// uploadField is the multipart field carrying the image.
const uploadField = "file"

// multipartMemory is the part of a multipart body kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

func (s *Server) httpDetectFaces(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	data := s.readUpload(w, r)

	res, err := s.processor.Process(data)
	s.checkDetection(err)

	s.Log.Debugf("Detected %v face(s) in %v bytes", res.Count, len(data))
	www.SendJSON(w, res)
}

func (s *Server) httpAnnotateFaces(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	style, err := facefind.ParseStyle(www.QueryValue(r, "style"))
	if err != nil {
		www.PanicBadRequestf("unknown style %q", www.QueryValue(r, "style"))
	}
	data := s.readUpload(w, r)

	img, res, err := s.processor.Annotate(data, style)
	s.checkDetection(err)

	var buf bytes.Buffer
	www.Check(facefind.Encode(&buf, img, imaging.JPEG))

	w.Header().Set("X-Face-Count", strconv.Itoa(res.Count))
	www.SendImage(w, "image/jpeg", buf.Bytes())
}

func (s *Server) httpHealth(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, map[string]string{"status": "ok"})
}

// readUpload returns the bytes of the uploaded file. It panics with the
// matching HTTPError when the body is too large or has no file field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) []byte {
	if r.ContentLength > s.Config.MaxUploadBytes {
		www.PanicTooLarge()
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		checkTooLarge(err)
		www.PanicBadRequestf("%v", facefind.ErrMissingInput)
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		www.PanicBadRequestf("%v", facefind.ErrMissingInput)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	checkTooLarge(err)
	www.Check(err)

	if s.uploads != nil {
		if path, err := s.uploads.Save(header.Filename, data); err != nil {
			s.Log.Warnf("Failed to save upload %q: %v", header.Filename, err)
		} else {
			s.Log.Debugf("Saved upload to %v", path)
		}
	}
	return data
}

// checkDetection maps detection errors to HTTP errors.
func (s *Server) checkDetection(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, facefind.ErrImageTooLarge) {
		s.Log.Debugf("Rejected upload: %v", err)
		panic(www.HTTPError{Code: http.StatusRequestEntityTooLarge, Message: facefind.ErrImageTooLarge.Error()})
	}
	if errors.Is(err, facefind.ErrInvalidImage) {
		s.Log.Debugf("Rejected upload: %v", err)
		www.PanicBadRequestf("%v", facefind.ErrInvalidImage)
	}
	panic(err)
}

func checkTooLarge(err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		www.PanicTooLarge()
	}
}

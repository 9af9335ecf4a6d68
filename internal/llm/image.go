package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxImageBytes = 20 << 20

type ImageData struct {
	MIMEType string
	Data     []byte
}

// Format is the short image format ("png", "jpeg", ...) derived from the MIME type.
func (d ImageData) Format() string {
	f := strings.TrimPrefix(strings.ToLower(d.MIMEType), "image/")
	if f == "jpg" {
		return "jpeg"
	}
	return f
}

func IsDataURI(ref string) bool { return strings.HasPrefix(ref, "data:") }

// DecodeDataURI parses data:<mime>;base64,<payload>.
func DecodeDataURI(ref string) (ImageData, error) {
	if !IsDataURI(ref) {
		return ImageData{}, fmt.Errorf("llm: not a data URI")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return ImageData{}, fmt.Errorf("llm: malformed data URI")
	}
	mime, enc, _ := strings.Cut(header, ";")
	if enc != "base64" {
		return ImageData{}, fmt.Errorf("llm: data URI must be base64 encoded")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageData{}, fmt.Errorf("llm: decode data URI: %w", err)
	}
	if mime == "" {
		mime = http.DetectContentType(raw)
	}
	return ImageData{MIMEType: mime, Data: raw}, nil
}

// FetchImage resolves a data: or http(s) image reference to bytes.
func FetchImage(ctx context.Context, client *http.Client, ref string) (ImageData, error) {
	if IsDataURI(ref) {
		return DecodeDataURI(ref)
	}
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return ImageData{}, fmt.Errorf("llm: unsupported image reference %q", ref)
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return ImageData{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return ImageData{}, fmt.Errorf("llm: fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ImageData{}, fmt.Errorf("llm: fetch image: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return ImageData{}, fmt.Errorf("llm: read image: %w", err)
	}
	if len(raw) > maxImageBytes {
		return ImageData{}, fmt.Errorf("llm: image exceeds %d bytes", maxImageBytes)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(raw)
	}
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return ImageData{MIMEType: mime, Data: raw}, nil
}

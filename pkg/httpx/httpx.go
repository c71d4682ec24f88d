// Package httpx abstracts the transport under the webhook intake so the
// same handler serves both the main net/http listener and the optional
// fasthttp fast-intake listener.
package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/valyala/fasthttp"
)

// Request is the unified request representation used by intake handlers.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
}

// ResponseWriter is the subset of http.ResponseWriter semantics adapters
// must provide.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the transport-independent handler signature.
type HandlerFunc func(w ResponseWriter, r *Request)

// NetHTTP adapts a HandlerFunc onto the standard library server.
func NetHTTP(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(&netWriter{w: w}, &Request{
			Ctx:        r.Context(),
			Method:     r.Method,
			Path:       r.URL.Path,
			Header:     r.Header,
			Body:       r.Body,
			RemoteAddr: r.RemoteAddr,
		})
	})
}

type netWriter struct {
	w     http.ResponseWriter
	wrote bool
}

func (n *netWriter) Header() http.Header { return n.w.Header() }

func (n *netWriter) WriteHeader(status int) {
	n.wrote = true
	n.w.WriteHeader(status)
}

func (n *netWriter) Write(b []byte) (int, error) {
	if !n.wrote {
		n.WriteHeader(http.StatusOK)
	}
	return n.w.Write(b)
}

// FastHTTP adapts a HandlerFunc onto a fasthttp server. The request body is
// already fully buffered by fasthttp, so the reader is a cheap wrapper.
func FastHTTP(h HandlerFunc) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		hdr := make(http.Header)
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			hdr.Add(string(k), string(v))
		})
		req := &Request{
			Ctx:        context.Background(),
			Method:     string(ctx.Method()),
			Path:       string(ctx.Path()),
			Header:     hdr,
			Body:       io.NopCloser(bytes.NewReader(ctx.PostBody())),
			RemoteAddr: ctx.RemoteAddr().String(),
		}
		h(&fastWriter{ctx: ctx}, req)
	}
}

type fastWriter struct {
	ctx    *fasthttp.RequestCtx
	header http.Header
	wrote  bool
}

func (f *fastWriter) Header() http.Header {
	if f.header == nil {
		f.header = make(http.Header)
	}
	return f.header
}

func (f *fastWriter) WriteHeader(status int) {
	f.wrote = true
	for k, vals := range f.header {
		for _, v := range vals {
			f.ctx.Response.Header.Add(k, v)
		}
	}
	f.ctx.SetStatusCode(status)
}

func (f *fastWriter) Write(b []byte) (int, error) {
	if !f.wrote {
		f.WriteHeader(http.StatusOK)
	}
	return f.ctx.Write(b)
}

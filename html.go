package main

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

//go:embed buzzer/client.html
var clientHTML []byte

//go:embed buzzer/host.html
var hostHTML []byte

//go:embed buzzer/client.js
var clientJS []byte

//go:embed buzzer/host.js
var hostJS []byte

//go:embed buzzer/app.css
var buzzboxCSS []byte

func serveStatic(cfg *Config, contentType string, data []byte) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(data)
	}
}

func getClientHandler(cfg *Config) httprouter.Handle {
	return serveStatic(cfg, "text/html; charset=utf-8", clientHTML)
}

func getHostHandler(cfg *Config) httprouter.Handle {
	return serveStatic(cfg, "text/html; charset=utf-8", hostHTML)
}

func getClientJsHandler(cfg *Config) httprouter.Handle {
	return serveStatic(cfg, "application/javascript; charset=utf-8", clientJS)
}

func getHostJsHandler(cfg *Config) httprouter.Handle {
	return serveStatic(cfg, "application/javascript; charset=utf-8", hostJS)
}

func getCssHandler(cfg *Config) httprouter.Handle {
	return serveStatic(cfg, "text/css; charset=utf-8", buzzboxCSS)
}

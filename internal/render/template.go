// Package render assembles the static trailer table pages and writes them
// out in fixed-size chunks.
package render

import (
	"fmt"
	"html/template"
	"io"
)

// Game is one rendered table row.
type Game struct {
	AppID       int
	Name        string
	StoreURL    string
	HeaderImage string
	// ManifestURL is the intercepted DASH manifest; empty when the store
	// page had no playable trailer.
	ManifestURL string
}

// HasTrailer reports whether a DASH player should be emitted for the row.
func (g Game) HasTrailer() bool {
	return g.ManifestURL != ""
}

type pageData struct {
	Title string
	Games []Game
}

// PageRenderer renders the trailer table HTML document.
type PageRenderer struct {
	tmpl *template.Template
}

// NewPageRenderer parses the embedded page template.
func NewPageRenderer() (*PageRenderer, error) {
	tmpl, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return &PageRenderer{tmpl: tmpl}, nil
}

// Render writes a full HTML document for the given games to w.
func (r *PageRenderer) Render(w io.Writer, title string, games []Game) error {
	if err := r.tmpl.Execute(w, pageData{Title: title, Games: games}); err != nil {
		return fmt.Errorf("execute page template: %w", err)
	}
	return nil
}

// Page layout follows the storefront's dark palette; trailers stream via
// dash.js and only initialize on first hover to keep page load cheap.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Steam Games - {{.Title}}</title>
    <script src="https://cdnjs.cloudflare.com/ajax/libs/dashjs/4.7.4/dash.all.min.js"></script>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: 'Segoe UI', Arial, sans-serif;
            background: #1b2838;
            color: #c6d4df;
            padding: 24px;
        }
        h1 {
            color: #66c0f4;
            text-align: center;
            margin-bottom: 28px;
            font-size: 1.8rem;
            letter-spacing: 0.04em;
        }
        table {
            width: auto;
            margin: 0 auto;
            border-collapse: collapse;
            background: #16202d;
            border-radius: 10px;
            overflow: hidden;
            box-shadow: 0 6px 24px rgba(0,0,0,0.5);
        }
        thead { background: #1e3a5f; }
        th {
            padding: 14px 20px;
            text-align: left;
            font-size: 0.85rem;
            color: #66c0f4;
            text-transform: uppercase;
            letter-spacing: 0.08em;
        }
        td {
            padding: 18px 20px;
            border-bottom: 1px solid #2a3f5f;
            vertical-align: middle;
        }
        tr:last-child td { border-bottom: none; }
        tr:hover { background: #1a2e47; }
        .widget-cell { padding: 12px 20px; vertical-align: middle; }
        .widget-cell iframe { display: block; }
        .video-wrapper video {
            display: block;
            border-radius: 6px;
            background: #000;
            max-width: 100%;
        }
        .no-trailer { color: #7a8fa8; font-style: italic; }
        .error-msg { color: #e06c6c; font-size: 0.85rem; }
    </style>
</head>
<body>
    <h1>🎮 Steam Games</h1>
    <table>
        <thead>
            <tr><th>Store</th><th>Trailer</th></tr>
        </thead>
        <tbody>
{{- range .Games}}
        <tr>
            <td class="widget-cell">
                <iframe src="https://store.steampowered.com/widget/{{.AppID}}/"
                    frameborder="0" width="646" height="190">
                </iframe>
            </td>
            <td class="trailer-cell">
{{- if .HasTrailer}}
                <div class="video-wrapper">
                    <video
                        id="video-{{.AppID}}"
                        data-mpd="{{.ManifestURL}}"
                        poster="{{.HeaderImage}}"
                        muted
                        controls
                        width="960"
                        preload="none">
                    </video>
                </div>
{{- else}}
                <em class="no-trailer">No trailer available</em>
{{- end}}
            </td>
        </tr>
{{- end}}
        </tbody>
    </table>
    <script>
    document.addEventListener('DOMContentLoaded', function () {
        document.querySelectorAll('video[data-mpd]').forEach(function (videoEl) {
            var mpdUrl = videoEl.getAttribute('data-mpd');
            if (!mpdUrl) return;

            var player = null;
            var ready = false;
            var pendingPlay = false;

            function initPlayer() {
                if (player) return;
                try {
                    player = dashjs.MediaPlayer().create();
                    player.initialize(videoEl, mpdUrl, false);
                    player.updateSettings({
                        streaming: { abr: { autoSwitchBitrate: { video: true } } }
                    });
                    player.on(dashjs.MediaPlayer.events.CAN_PLAY, function () {
                        ready = true;
                        if (pendingPlay) {
                            pendingPlay = false;
                            videoEl.play();
                        }
                    });
                } catch (err) {
                    videoEl.parentElement.innerHTML =
                        '<span class="error-msg">Could not initialise DASH player: ' + err.message + '</span>';
                }
            }

            videoEl.addEventListener('mouseenter', function () {
                if (!player) {
                    pendingPlay = true;
                    initPlayer();
                } else if (ready) {
                    videoEl.play();
                } else {
                    pendingPlay = true;
                }
            });

            videoEl.addEventListener('mouseleave', function () {
                pendingPlay = false;
                videoEl.pause();
            });
        });
    });
    </script>
</body>
</html>
`

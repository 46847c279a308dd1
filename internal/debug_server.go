package internal

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// inspectTemplate is a minimal key browser, enough to eyeball registry
// rows and message partitions while developing.
var inspectTemplate = template.Must(template.New("inspect").Parse(`<!DOCTYPE html>
<html><head><title>relay inspector</title></head><body>
<h2>relay inspector</h2>
<form method="GET"><input name="prefix" value="{{.Prefix}}"><button>scan</button></form>
<p>{{len .Items}} keys</p>
{{range $k, $v := .Stats}}<p><b>{{$k}}</b>: {{$v}}</p>{{end}}
<table border="1" cellpadding="4">
<tr><th>key</th><th>value</th></tr>
{{range .Items}}<tr><td><code>{{.Key}}</code></td><td><code>{{.Value}}</code></td></tr>{{end}}
</table></body></html>`))

type inspectRow struct {
	Key   string
	Value string
}

type inspectPage struct {
	Prefix string
	Stats  map[string]any
	Items  []inspectRow
}

// StatsProvider feeds dynamic counters into the inspector page.
type StatsProvider func() map[string]any

// StartDebugServer exposes a badger prefix browser on its own port.
// Debug builds only; never reachable in a normal deployment.
func StartDebugServer(db *badger.DB, port int, endpoint string, stats StatsProvider) {
	mux := http.NewServeMux()
	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "conn:"
		}

		page := inspectPage{Prefix: prefix, Stats: make(map[string]any)}
		if stats != nil {
			page.Stats = stats()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				value, err := it.Item().ValueCopy(nil)
				if err != nil {
					return err
				}
				page.Items = append(page.Items, inspectRow{
					Key:   string(it.Item().Key()),
					Value: string(value),
				})
				if len(page.Items) >= 500 {
					break
				}
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = inspectTemplate.Execute(w, page)
	})

	go func() {
		_ = http.ListenAndServe(":"+strconv.Itoa(port), mux)
	}()
}

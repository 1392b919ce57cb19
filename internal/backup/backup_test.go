package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marcus/roster/internal/backend/backendtest"
	"github.com/marcus/roster/internal/backend/local"
	"github.com/marcus/roster/internal/models"
	"github.com/marcus/roster/internal/orchestrator"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xuri/excelize/v2"
)

func newOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := local.New(conn, "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	o := orchestrator.New(s)
	if err := o.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return o
}

func seed(t *testing.T, o *orchestrator.Orchestrator, perType int) {
	t.Helper()
	ctx := context.Background()
	for _, et := range models.AllEntityTypes {
		for i := 0; i < perType; i++ {
			if _, err := o.Add(ctx, et, backendtest.Sample(et, i)); err != nil {
				t.Fatalf("add %s: %v", et, err)
			}
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"backup.json":         FormatJSON,
		"roster-1.json.sz":    FormatSnappy,
		"dir/Backup.YML":      FormatYAML,
		"s3-key/roster.yaml":  FormatYAML,
		"exports/roster.xlsx": FormatXLSX,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		if err != nil || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := FormatFromPath("roster.csv"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("got %v, want ErrUnknownFormat", err)
	}
	if f, err := ParseFormat("snappy"); err != nil || f != FormatSnappy {
		t.Fatalf("ParseFormat(snappy) = %q, %v", f, err)
	}
}

func TestEveryFormatKeepsAllRecords(t *testing.T) {
	src := newOrchestrator(t)
	seed(t, src, 3)
	want := src.Snapshot()

	for _, f := range []Format{FormatJSON, FormatSnappy, FormatYAML, FormatXLSX} {
		t.Run(string(f), func(t *testing.T) {
			raw, err := Export(src, f, "local")
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			env, err := Decode(bytes.NewReader(raw), f)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			for _, et := range models.AllEntityTypes {
				if got := env.Data.Len(et); got != want.Len(et) {
					t.Fatalf("%s: got %d records, want %d", et, got, want.Len(et))
				}
				for _, e := range want.Items(et) {
					got, ok := env.Data.Find(et, e.EntityID())
					if !ok {
						t.Fatalf("%s %s missing", et, e.EntityID())
					}
					if got != e {
						t.Fatalf("%s: got %+v, want %+v", et, got, e)
					}
				}
			}
		})
	}
}

func TestYAMLKeepsStringsThatLookLikeNumbers(t *testing.T) {
	data := models.NewAppData()
	data.Insert(models.Vehicle{ID: "v1", VehicleNumber: "1234", RegistrationDate: "2023-01-15"})
	var buf bytes.Buffer
	if err := Encode(&buf, FormatYAML, Envelope{Data: data}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(&buf, FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	v, _ := env.Data.Find(models.EntityVehicle, "v1")
	if v.(models.Vehicle).VehicleNumber != "1234" {
		t.Fatalf("got %+v", v)
	}
}

func TestXLSXLayout(t *testing.T) {
	src := newOrchestrator(t)
	seed(t, src, 2)
	raw, err := Export(src, FormatXLSX, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != len(models.AllEntityTypes) {
		t.Fatalf("sheets: %v", sheets)
	}
	for i, et := range models.AllEntityTypes {
		if sheets[i] != et.Collection() {
			t.Fatalf("sheet %d: got %q, want %q", i, sheets[i], et.Collection())
		}
		rows, err := f.GetRows(et.Collection())
		if err != nil {
			t.Fatalf("rows: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("%s: got %d rows, want header + 2", et, len(rows))
		}
		if strings.Join(rows[0], ",") != strings.Join(models.FieldNames(et), ",") {
			t.Fatalf("%s header: %v", et, rows[0])
		}
	}
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	in := `{"version": 99, "data": {}}`
	if _, err := Decode(strings.NewReader(in), FormatJSON); err == nil {
		t.Fatal("expected version error")
	}
}

func TestDecodeFillsMissingCollections(t *testing.T) {
	env, err := Decode(strings.NewReader(`{"version": 1, "data": {"drivers": [{"id": "d1", "driver_name": "Kim"}]}}`), FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Schedules == nil || env.Data.WorkTeams == nil {
		t.Fatal("collections should be empty, not nil")
	}
	if env.Data.Len(models.EntityDriver) != 1 {
		t.Fatalf("drivers: %d", env.Data.Len(models.EntityDriver))
	}
}

func TestRestoreAssignsFreshIDs(t *testing.T) {
	src := newOrchestrator(t)
	seed(t, src, 2)
	backup := src.Snapshot()

	dst := newOrchestrator(t)
	stats, err := Restore(context.Background(), dst, backup, false)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if stats.Total() != 8 || stats[models.EntityDriver] != 2 {
		t.Fatalf("stats: %v", stats)
	}
	got := dst.Snapshot()
	for _, d := range backup.Drivers {
		if got.Has(models.EntityDriver, d.ID) {
			t.Fatalf("id %s reused", d.ID)
		}
	}
	if got.Len(models.EntityDriver) != 2 {
		t.Fatalf("drivers: %d", got.Len(models.EntityDriver))
	}
}

func TestRestoreReplace(t *testing.T) {
	ctx := context.Background()
	dst := newOrchestrator(t)
	if _, err := dst.Add(ctx, models.EntityDriver, models.Driver{DriverName: "old"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	data := models.NewAppData()
	data.Insert(models.Driver{ID: "d1", DriverName: "new"})

	if _, err := Restore(ctx, dst, data, false); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if n := dst.Snapshot().Len(models.EntityDriver); n != 2 {
		t.Fatalf("merge: got %d drivers, want 2", n)
	}

	if _, err := Restore(ctx, dst, data, true); err != nil {
		t.Fatalf("replace: %v", err)
	}
	drivers := dst.Snapshot().Drivers
	if len(drivers) != 1 || drivers[0].DriverName != "new" {
		t.Fatalf("replace: got %+v", drivers)
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, ok, err := ParseS3URL("s3://roster-backups/2026/10/roster.json.sz")
	if err != nil || !ok || bucket != "roster-backups" || key != "2026/10/roster.json.sz" {
		t.Fatalf("got %q %q %v %v", bucket, key, ok, err)
	}
	if _, _, ok, _ := ParseS3URL("backups/roster.json"); ok {
		t.Fatal("local path treated as s3")
	}
	if _, _, _, err := ParseS3URL("s3://bucket-only"); !errors.Is(err, ErrBadS3URL) {
		t.Fatalf("got %v, want ErrBadS3URL", err)
	}
}

// fakeBucket is a path-style S3 endpoint backed by a map.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		b.objects[path] = body
		b.types[path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := b.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3TargetPutGet(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                aws.AnonymousCredentials{},
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	target := NewS3TargetWithClient(client, "roster-backups")
	ctx := context.Background()

	src := newOrchestrator(t)
	seed(t, src, 1)
	raw, err := Export(src, FormatSnappy, "local")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := target.Put(ctx, "nightly/roster.json.sz", raw, ContentType(FormatSnappy)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := bucket.objects["roster-backups/nightly/roster.json.sz"]; !ok {
		t.Fatalf("objects: %v", bucket.objects)
	}

	got, err := target.Get(ctx, "nightly/roster.json.sz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatal("downloaded bytes differ")
	}

	if _, err := target.Get(ctx, "missing.json"); err == nil {
		t.Fatal("expected error for missing object")
	}
}

package slowpics

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeService emulates the slow.pics endpoints used by the client
type fakeService struct {
	t *testing.T

	mu          sync.Mutex
	sessions    int
	creates     int
	collections []fakeCollection
	uploads     []fakeUpload

	// noCookie makes /comparison return 200 without the XSRF cookie
	noCookie bool

	// sessionStatus, when set, is returned by /comparison
	sessionStatus int

	// createStatus decides the create response for a given frame count; 0 means success
	createStatus func(name string, frames []int) int

	// imageStatus decides the upload response for an image; 0 means success
	imageStatus func(fileName string) int
}

type fakeCollection struct {
	Name      string
	Public    string
	BrowserID string
	Frames    []int
	Tracks    []string
	Key       string
}

type fakeUpload struct {
	CollectionUUID string
	ImageUUID      string
	FileName       string
	ContentType    string
	Size           int
}

var comparisonName = regexp.MustCompile(`^comparisons\[(\d+)\]\.name$`)

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	f := &fakeService{t: t}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/comparison":
		f.sessions++
		if f.sessionStatus != 0 {
			w.WriteHeader(f.sessionStatus)
			return
		}
		if !f.noCookie {
			http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "token-" + strconv.Itoa(f.sessions), Path: "/"})
		}
		w.Write([]byte("<html></html>"))

	case r.Method == http.MethodPost && r.URL.Path == "/upload/comparison":
		f.creates++
		if !f.checkToken(w, r) {
			return
		}
		require.NoError(f.t, r.ParseMultipartForm(32<<20))

		col := fakeCollection{
			Name:      r.FormValue("collectionName"),
			Public:    r.FormValue("public"),
			BrowserID: r.FormValue("browserId"),
		}
		slots := map[int]int{}
		for k, v := range r.MultipartForm.Value {
			if m := comparisonName.FindStringSubmatch(k); m != nil {
				x, _ := strconv.Atoi(m[1])
				frame, _ := strconv.Atoi(v[0])
				slots[x] = frame
			}
		}
		for x := 0; x < len(slots); x++ {
			col.Frames = append(col.Frames, slots[x])
		}
		for i := 0; ; i++ {
			name := r.FormValue(fmt.Sprintf("comparisons[0].imageNames[%d]", i))
			if name == "" {
				break
			}
			col.Tracks = append(col.Tracks, name)
		}

		if f.createStatus != nil {
			if status := f.createStatus(col.Name, col.Frames); status != 0 {
				w.WriteHeader(status)
				w.Write([]byte("create failed"))
				return
			}
		}

		col.Key = fmt.Sprintf("key%d", len(f.collections)+1)
		f.collections = append(f.collections, col)

		images := make([][]string, len(col.Frames))
		for x := range images {
			for i := range col.Tracks {
				images[x] = append(images[x], fmt.Sprintf("%s-img-%d-%d", col.Key, x, i))
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"collectionUuid": col.Key + "-uuid",
			"key":            col.Key,
			"images":         images,
		})

	case r.Method == http.MethodPost && r.URL.Path == "/upload/image":
		if !f.checkToken(w, r) {
			return
		}
		require.NoError(f.t, r.ParseMultipartForm(32<<20))
		file, header, err := r.FormFile("file")
		require.NoError(f.t, err)
		data, _ := io.ReadAll(file)

		up := fakeUpload{
			CollectionUUID: r.FormValue("collectionUuid"),
			ImageUUID:      r.FormValue("imageUuid"),
			FileName:       header.Filename,
			ContentType:    header.Header.Get("Content-Type"),
			Size:           len(data),
		}
		if f.imageStatus != nil {
			if status := f.imageStatus(up.FileName); status != 0 {
				w.WriteHeader(status)
				return
			}
		}
		f.uploads = append(f.uploads, up)
		w.Write([]byte("OK"))

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeService) checkToken(w http.ResponseWriter, r *http.Request) bool {
	ck, err := r.Cookie("XSRF-TOKEN")
	if err != nil || r.Header.Get("X-XSRF-TOKEN") != ck.Value {
		w.WriteHeader(http.StatusForbidden)
		return false
	}
	return true
}

func (f *fakeService) snapshot() (sessions, creates int, cols []fakeCollection, uploads []fakeUpload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions, f.creates, append([]fakeCollection(nil), f.collections...), append([]fakeUpload(nil), f.uploads...)
}

// dirImages serves <dir>/<track>_<NNNNNN>.png
type dirImages struct {
	dir string
}

func (d dirImages) Resolve(track string, frame int) (string, error) {
	path := filepath.Join(d.dir, fmt.Sprintf("%s_%06d.png", track, frame))
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func writeStills(t *testing.T, tracks []string, frames []int) dirImages {
	t.Helper()
	dir := t.TempDir()
	for _, tr := range tracks {
		for _, f := range frames {
			path := filepath.Join(dir, fmt.Sprintf("%s_%06d.png", tr, f))
			require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake "+tr), 0644))
		}
	}
	return dirImages{dir: dir}
}

func frameRange(n, step int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i * step
	}
	return out
}

func allFrames(cols []fakeCollection) []int {
	var out []int
	for _, c := range cols {
		out = append(out, c.Frames...)
	}
	sort.Ints(out)
	return out
}

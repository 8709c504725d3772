package archive

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

const (
	remoteRoot     = "sessions"
	manifestName   = "session.json"
	transcriptName = "transcript.jsonl.gz"
)

// bundleFile pairs a staged file with its remote destination.
type bundleFile struct {
	local  string
	remote string
}

// writeBundle stages a session under dir and returns the files to upload.
// The manifest comes back separately; uploading it last means a session
// only becomes listable once all its artifacts are in place.
func writeBundle(dir string, snap snapshot) (bundleFile, []bundleFile, Session, error) {
	var files []bundleFile
	var size int64

	if len(snap.Entries) > 0 {
		local := filepath.Join(dir, transcriptName)
		n, err := writeTranscript(local, snap.Entries)
		if err != nil {
			return bundleFile{}, nil, Session{}, err
		}
		size += n
		files = append(files, bundleFile{local: local, remote: remotePath(snap.ID, transcriptName)})
	}

	if len(snap.Stills) > 0 {
		stillsDir := filepath.Join(dir, "stills")
		if err := os.MkdirAll(stillsDir, 0o700); err != nil {
			return bundleFile{}, nil, Session{}, fmt.Errorf("create stills dir: %w", err)
		}
		for i, data := range snap.Stills {
			name := fmt.Sprintf("%03d.jpg", i)
			local := filepath.Join(stillsDir, name)
			if err := os.WriteFile(local, data, 0o600); err != nil {
				return bundleFile{}, nil, Session{}, fmt.Errorf("write still: %w", err)
			}
			size += int64(len(data))
			files = append(files, bundleFile{local: local, remote: remotePath(snap.ID, "stills/"+name)})
		}
	}

	sess := Session{
		ID:        snap.ID,
		Game:      snap.Game,
		StartedAt: snap.Started,
		EndedAt:   snap.Ended,
		Entries:   len(snap.Entries),
		Stills:    len(snap.Stills),
		Size:      size,
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return bundleFile{}, nil, Session{}, fmt.Errorf("encode manifest: %w", err)
	}
	local := filepath.Join(dir, manifestName)
	if err := os.WriteFile(local, data, 0o600); err != nil {
		return bundleFile{}, nil, Session{}, fmt.Errorf("write manifest: %w", err)
	}

	manifest := bundleFile{local: local, remote: remotePath(snap.ID, manifestName)}
	return manifest, files, sess, nil
}

func remotePath(id, name string) string {
	return path.Join(remoteRoot, id, name)
}

// writeTranscript encodes entries as gzipped JSON lines and reports the
// compressed size.
func writeTranscript(dst string, entries []Entry) (n int64, err error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create transcript: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	zw := gzip.NewWriter(f)
	enc := json.NewEncoder(zw)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			zw.Close()
			return 0, fmt.Errorf("encode transcript: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("compress transcript: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

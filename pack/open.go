package pack

import (
	"github.com/sirupsen/logrus"

	"github.com/rstspack/rstspack/backend"
	"github.com/rstspack/rstspack/backend/file"
	"github.com/rstspack/rstspack/disk"
)

func openBackend(path string, readOnly bool) (backend.Storage, error) {
	st, err := file.OpenFromPath(path, readOnly)
	if err != nil {
		return nil, err
	}
	logContainerAge(path)
	return st, nil
}

func createBackend(path string, size int64) (backend.Storage, error) {
	return file.CreateFromPath(path, size)
}

// logContainerAge surfaces the backing container file's host birth time as
// a mount-time diagnostic; absence (host filesystem without birth-time
// support) is silently ignored, matching pkg/xattr's own no-op-on-
// unsupported-filesystem posture for the container-label helpers in
// backend/file.
func logContainerAge(path string) {
	has, nanos, err := disk.BirthTime(path)
	if err != nil || !has {
		return
	}
	logrus.WithField("container", path).Debugf("container birth time: %d ns since epoch", nanos)
}

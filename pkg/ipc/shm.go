package ipc

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ShmRegion is a named, fixed-size shared region co-owned by the parent and
// exactly one worker. Its first EventFootprintBytes back an EventSignal;
// everything after that is payload bytes addressable via Payload().
type ShmRegion struct {
	flink   string
	file    *os.File
	data    []byte
	event   *EventSignal
	creator bool
}

// Flink returns the filesystem path this region was opened or created at.
func (r *ShmRegion) Flink() string {
	return r.flink
}

// Event returns the EventSignal living in this region's fixed header.
func (r *ShmRegion) Event() *EventSignal {
	return r.event
}

// Payload returns the mutable slice of bytes following the event header.
// Its length is fixed for the region's entire lifetime.
func (r *ShmRegion) Payload() []byte {
	return r.data[EventFootprintBytes:]
}

// GetFlink joins flinksFolder and procID using the host's path convention,
// the same way a worker and its parent independently compute the same
// shared-memory name without exchanging it out of band.
func GetFlink(flinksFolder, procID string) string {
	return filepath.Join(flinksFolder, procID)
}

// CreateShmRegion creates a new backing file at flink sized to hold
// EventFootprintBytes plus payloadSize bytes and maps it MAP_SHARED. This
// is the worker side of the contract; EPI itself never creates a region,
// but the loopback test fixtures that stand in for a worker do.
func CreateShmRegion(flink string, payloadSize int) (*ShmRegion, error) {
	if err := os.MkdirAll(filepath.Dir(flink), 0o755); err != nil {
		return nil, errors.Wrapf(err, "ipc: create flink directory for %s", flink)
	}
	file, err := os.OpenFile(flink, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "ipc: create shm backing file %s", flink)
	}
	total := EventFootprintBytes + payloadSize
	if err := file.Truncate(int64(total)); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "ipc: truncate shm backing file %s to %d bytes", flink, total)
	}
	return mapRegion(flink, file, total, true)
}

// OpenShmRegion opens an already-created region by its flink. This is the
// parent side of the contract: EPI calls this from AddProcess once the
// handshake byte has been exchanged with the worker.
func OpenShmRegion(flink string, payloadSize int) (*ShmRegion, error) {
	file, err := os.OpenFile(flink, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "ipc: open shm flink %s", flink)
	}
	total := EventFootprintBytes + payloadSize
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "ipc: stat shm flink %s", flink)
	}
	if info.Size() < int64(total) {
		file.Close()
		return nil, errors.Errorf("ipc: shm flink %s is %d bytes, expected at least %d", flink, info.Size(), total)
	}
	return mapRegion(flink, file, total, false)
}

func mapRegion(flink string, file *os.File, total int, creator bool) (*ShmRegion, error) {
	data, err := unix.Mmap(int(file.Fd()), 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "ipc: mmap shm flink %s", flink)
	}
	return &ShmRegion{
		flink:   flink,
		file:    file,
		data:    data,
		event:   newEventSignal(data[:EventFootprintBytes]),
		creator: creator,
	}, nil
}

// Close unmaps the region and closes the backing file descriptor. If this
// region was created (not merely opened) by this process, the backing file
// is also removed.
func (r *ShmRegion) Close() error {
	var err error
	if uerr := unix.Munmap(r.data); uerr != nil {
		err = errors.Wrapf(uerr, "ipc: munmap shm flink %s", r.flink)
	}
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = errors.Wrapf(cerr, "ipc: close shm backing file %s", r.flink)
	}
	if r.creator {
		if rerr := os.Remove(r.flink); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = errors.Wrapf(rerr, "ipc: remove shm backing file %s", r.flink)
		}
	}
	return err
}

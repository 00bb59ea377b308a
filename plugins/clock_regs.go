package plugins

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/linht/logiclk-manager/mmcm"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/pmem"
)

// Register window backends
const (
	BackendUIO  = "uio"  // /dev/uioN exported by the uio_pdrv_genirq driver
	BackendPmem = "pmem" // /dev/mem at a physical address
	BackendSim  = "sim"  // in-memory, always locks

	DefaultWindowSize = 0x1000
)

// RegisterWindow is an open logiCLK register block.
type RegisterWindow interface {
	mmcm.RegisterBlock
	Close() error
	Info() string
}

// OpenRegisterWindow maps the register block described by cfg.
func OpenRegisterWindow(cfg RegistersConfig) (RegisterWindow, error) {
	size := cfg.Size
	if size == 0 {
		size = DefaultWindowSize
	}

	switch cfg.Backend {
	case BackendUIO:
		w, err := openUIOWindow(cfg.Device, size)
		if err != nil {
			return nil, err
		}
		return w, nil
	case BackendPmem:
		w, err := openPmemWindow(cfg.BaseAddress, size)
		if err != nil {
			return nil, err
		}
		return w, nil
	case BackendSim, "":
		return &simWindow{SimRegisters: mmcm.NewSimRegisters(0)}, nil
	default:
		return nil, errors.Errorf("unknown register backend %q", cfg.Backend)
	}
}

// mmioWords accesses a mapped window with single 32-bit loads and stores.
type mmioWords []uint32

func (w mmioWords) index(offset uint32) (int, error) {
	i := int(offset / mmcm.RegStride)
	if offset%mmcm.RegStride != 0 || i >= len(w) {
		return 0, errors.Errorf("register offset 0x%X outside window", offset)
	}
	return i, nil
}

func (w mmioWords) ReadRegister(offset uint32) (uint32, error) {
	i, err := w.index(offset)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&w[i]), nil
}

func (w mmioWords) WriteRegister(offset uint32, value uint32) error {
	i, err := w.index(offset)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&w[i], value)
	return nil
}

// uioWindow maps map 0 of a UIO device
type uioWindow struct {
	mmioWords
	file   *os.File
	mem    []byte
	device string
}

func openUIOWindow(device string, size int) (*uioWindow, error) {
	if device == "" {
		return nil, errors.New("uio backend requires a device")
	}

	f, err := os.OpenFile(device, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", device)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap %s", device)
	}

	return &uioWindow{
		mmioWords: unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), len(mem)/mmcm.RegStride),
		file:      f,
		mem:       mem,
		device:    device,
	}, nil
}

func (w *uioWindow) Close() error {
	if w.mem == nil {
		return nil
	}
	err := unix.Munmap(w.mem)
	w.mem = nil
	w.mmioWords = nil
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return errors.Wrap(err, "cleanup uio")
}

func (w *uioWindow) Info() string {
	return fmt.Sprintf("UIO: %s, %d bytes", w.device, len(w.mmioWords)*mmcm.RegStride)
}

// pmemWindow maps physical memory through periph.io
type pmemWindow struct {
	mmioWords
	view *pmem.View
	base uint64
}

func openPmemWindow(base uint64, size int) (*pmemWindow, error) {
	if base == 0 {
		return nil, errors.New("pmem backend requires a base address")
	}

	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph.io host init")
	}

	view, err := pmem.Map(base, size)
	if err != nil {
		return nil, errors.Wrapf(err, "pmem map 0x%X", base)
	}

	return &pmemWindow{
		mmioWords: view.Uint32(),
		view:      view,
		base:      base,
	}, nil
}

func (w *pmemWindow) Close() error {
	if w.view == nil {
		return nil
	}
	err := w.view.Close()
	w.view = nil
	w.mmioWords = nil
	return errors.Wrap(err, "cleanup pmem")
}

func (w *pmemWindow) Info() string {
	return fmt.Sprintf("pmem: 0x%08X, %d bytes", w.base, len(w.mmioWords)*mmcm.RegStride)
}

// simWindow backs the API without hardware
type simWindow struct {
	*mmcm.SimRegisters
}

func (w *simWindow) Close() error {
	return nil
}

func (w *simWindow) Info() string {
	return "sim"
}

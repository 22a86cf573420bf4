package syscall

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/abi"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/process"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/uaccess"
)

const failure = ^uint32(0) // -1

func boolWord(ok bool) uint32 {
	if ok {
		return 1
	}
	return 0
}

// copyInName copies a user path into a kernel string.
func (d *Dispatcher) copyInName(p *process.Process, addr uint32) (string, error) {
	page, err := uaccess.CopyInString(p.Space(), d.pages, addr)
	if err != nil {
		return "", err
	}
	name := page.String()
	d.pages.Free(page)
	return name, nil
}

func sysCreate(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	name, err := d.copyInName(p, args[0])
	if err != nil {
		return 0, err
	}

	d.fsLock.Lock()
	err = d.fs.Create(name, int(args[1]))
	d.fsLock.Unlock()

	if err != nil {
		d.logger.Debug("create failed", zap.String("name", name), zap.Error(err))
	}
	return boolWord(err == nil), nil
}

func sysRemove(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	name, err := d.copyInName(p, args[0])
	if err != nil {
		return 0, err
	}

	d.fsLock.Lock()
	err = d.fs.Remove(name)
	d.fsLock.Unlock()

	return boolWord(err == nil), nil
}

func sysOpen(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	name, err := d.copyInName(p, args[0])
	if err != nil {
		return 0, err
	}

	d.fsLock.Lock()
	defer d.fsLock.Unlock()

	f, err := d.fs.Open(name)
	if err != nil {
		return failure, nil
	}
	return uint32(int32(p.Files().Insert(f))), nil
}

func sysFilesize(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	d.fsLock.Lock()
	defer d.fsLock.Unlock()

	desc := p.Files().Lookup(int(int32(args[0])))
	if desc == nil {
		return 0, nil
	}
	return uint32(desc.File.Length()), nil
}

// sysRead transfers at most one page per step, so the kernel buffer does
// not grow with the requested size.
func sysRead(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	fd, buf, size := int(int32(args[0])), args[1], args[2]

	mem := p.Space()
	if err := uaccess.CheckWritable(mem, buf, size); err != nil {
		return 0, err
	}

	var src func(chunk []byte) (int, error)
	if fd == abi.StdinFileno {
		src = func(chunk []byte) (int, error) { return d.console.Read(chunk), nil }
	} else {
		d.fsLock.Lock()
		defer d.fsLock.Unlock()

		desc := p.Files().Lookup(fd)
		if desc == nil {
			return failure, nil
		}
		src = desc.File.Read
	}

	data := make([]byte, min(size, abi.PageSize))
	var total uint32
	for total < size {
		chunk := data[:min(size-total, abi.PageSize)]
		n, err := src(chunk)
		if err != nil && !errors.Is(err, io.EOF) {
			return failure, nil
		}
		if err := uaccess.CopyOut(mem, buf+total, chunk[:n]); err != nil {
			return 0, err
		}
		total += uint32(n)
		if n < len(chunk) || err != nil {
			break
		}
	}
	return total, nil
}

func sysWrite(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	fd, buf, size := int(int32(args[0])), args[1], args[2]

	mem := p.Space()
	if err := uaccess.CheckReadable(mem, buf, size); err != nil {
		return 0, err
	}

	if fd == abi.StdoutFileno {
		var err error
		d.console.Locked(func(put func([]byte)) {
			err = uaccess.CopyInChunks(mem, buf, size, func(chunk []byte) error {
				put(chunk)
				return nil
			})
		})
		if err != nil {
			return 0, err
		}
		return size, nil
	}

	d.fsLock.Lock()
	defer d.fsLock.Unlock()

	desc := p.Files().Lookup(fd)
	if desc == nil {
		return 0, nil
	}
	var written int
	var writeErr error
	err := uaccess.CopyInChunks(mem, buf, size, func(chunk []byte) error {
		n, err := desc.File.Write(chunk)
		written += n
		if err != nil {
			writeErr = err
		}
		return err
	})
	switch {
	case writeErr != nil:
		if !errors.Is(writeErr, filesys.ErrTooLarge) {
			d.logger.Warn("write failed", zap.Int("fd", fd), zap.Error(writeErr))
		}
	case err != nil:
		return 0, err
	}
	return uint32(written), nil
}

func sysSeek(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	d.fsLock.Lock()
	defer d.fsLock.Unlock()

	if desc := p.Files().Lookup(int(int32(args[0]))); desc != nil {
		desc.File.Seek(int(args[1]))
	}
	return 0, nil
}

func sysTell(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	d.fsLock.Lock()
	defer d.fsLock.Unlock()

	desc := p.Files().Lookup(int(int32(args[0])))
	if desc == nil {
		return 0, nil
	}
	return uint32(desc.File.Tell()), nil
}

func sysClose(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	d.fsLock.Lock()
	defer d.fsLock.Unlock()

	if desc := p.Files().Remove(int(int32(args[0]))); desc != nil {
		_ = desc.File.Close()
	}
	return 0, nil
}

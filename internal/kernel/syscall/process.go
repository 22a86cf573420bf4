package syscall

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/process"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/sched"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/uaccess"
)

func sysHalt(d *Dispatcher, p *process.Process, _ []uint32) (uint32, error) {
	d.logger.Info("halt requested", zap.Int32("pid", int32(p.Pid())))
	d.halter.Halt()
	d.procs.Stop(p)
	return 0, nil
}

func sysExit(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	d.procs.Exit(p, int(int32(args[0])))
	return 0, nil
}

func sysExec(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	page, err := uaccess.CopyInString(p.Space(), d.pages, args[0])
	if err != nil {
		return 0, err
	}
	cmdline := page.String()
	d.pages.Free(page)

	return uint32(int32(d.procs.Exec(p, cmdline))), nil
}

func sysWait(d *Dispatcher, p *process.Process, args []uint32) (uint32, error) {
	return uint32(int32(d.procs.Wait(p, sched.Tid(int32(args[0]))))), nil
}

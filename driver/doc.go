// Package driver runs a linked guest one frame at a time.
//
// # States
//
//	Uninitialized --Start--> Ready --Tick--> Running --(fatal | trap | frame OOB | Halt)--> Halted
//
// Halted is terminal. A halted driver never calls into the guest again; Tick
// returns ErrHalted immediately.
//
// # One Tick
//
//  1. deliver the input snapshot, when an input source and the export exist
//  2. step(token, quantum)
//  3. if the guest reported a fatal during the step, halt
//  4. re-derive guest memory and lend [fb, fb+width*height*4) to the presenter
//
// Ticks never overlap: a Tick that arrives while another is in flight returns
// ErrBusy. Schedulers decide when ticks happen; the driver never catches up on
// missed ones.
//
// # Example
//
//	d := driver.New(inst, ch, driver.Config{Width: 160, Height: 144, CyclesPerTick: q},
//		driver.WithPresenter(screen))
//	if err := d.Start(ctx); err != nil {
//	    return err
//	}
//	clock := driver.NewFrameClock(59.7275)
//	defer clock.Stop()
//	err := d.Run(ctx, clock)
package driver

// Package runtime assembles a simulator host from a module image: engine,
// import table, memory view, diagnostics channel and execution driver.
//
//	image, err := runtime.LoadImage("gb.wasm")
//	host, err := runtime.Load(ctx, image, runtime.Options{
//		Config:    cfg,
//		Presenter: screen,
//		Input:     pad,
//	})
//	defer host.Close(ctx)
//
//	if err := host.Driver().Start(ctx); err != nil { ... }
//	err = host.Driver().Run(ctx, driver.NewFrameClock(cfg.Timing.RefreshHz))
//
// Load fails with a link_failure if the image does not compile or instantiate;
// unknown imports never fail it. Host implements linker.Handlers, routing
// guest log and fatal calls to the diagnostics channel and the boot image
// offset to the driver.
package runtime

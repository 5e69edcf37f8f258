// Package dronectl controls the lifecycle of the drone receiver stack on a
// remote AntSDR host: it can forcibly stop every receiver process or start
// the stack detached from the controlling session.
//
// The core is the Reaper, a pattern-based discover-and-kill protocol that
// runs as a single remote batch:
//
//	dialer := dronectl.NewSSHDialer("172.31.100.2", "root", secret)
//	reaper := dronectl.NewReaper(dialer)
//
//	report, err := reaper.Stop(ctx, dronectl.DefaultPatterns())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(report.Render())
//
// Stop is idempotent: a run that matches nothing reports "service not
// running" and is still success. Individual kill rejections are recorded
// in the report, never raised as errors.
//
// The Launcher is the minor counterpart, a single fire-and-forget detached
// dispatch of the init entry point:
//
//	launcher := dronectl.NewLauncher(dialer)
//	err = launcher.Start(ctx)
//
// Start returns the moment the remote shell accepts the command. Radio
// bring-up can take arbitrarily long, so there is deliberately no
// readiness polling, no retry, and no timeout on the detached side.
//
// # Design Philosophy
//
// This library prioritizes:
//
//   - One remote round trip per stop (enumerate, match, kill, re-enumerate
//     happen in a single pushed routine)
//   - Literal substring matching against full command lines, robust to
//     wrapper scripts and interpreter prefixes
//   - Sessions as scoped resources, closed on every exit path
//   - Structured outcomes over exit-code archaeology (StopReport records
//     what matched, what was signalled, and what remains)
//
// Transport is abstracted behind the Dialer and Session interfaces; the
// provided SSHDialer covers the password-authenticated SSH used on the
// closed SDR network, and tests substitute in-memory fakes.
package dronectl

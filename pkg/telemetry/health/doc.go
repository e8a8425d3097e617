// Package health provides liveness and readiness probes for
// "drivelogic serve".
//
// /health always answers 200 while the process runs. /ready runs the
// registered checks concurrently, each bounded by the checker timeout, and
// answers 503 when any of them fails. The server registers two checks:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("rules", health.RuleBaseCheck(eng.Compiled))
//	checker.RegisterCheck("results", health.StoreCheck(store))
//	health.Register(mux, checker, version, commit, buildTime)
package health

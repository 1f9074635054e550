package ext

import (
	"context"
	"os"
	"os/exec"
	"runtime"

	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
)

// NativeModelEnvVar is the well-known environment variable the workflow
// engine sets at extension-invocation time, whenever the project enables
// native-model support, to the name of the model being built. The engine
// does not build native-model counterparts of dependencies.
const NativeModelEnvVar = "MINIBUILD_NATIVE_MODEL"

// StandardVars builds the closed set of template variables §4.7 names
// (containing directory, executable suffix, path separator, object/source
// directories), keyed by the names ext_vars_required/ext_local_vars_required
// may reference.
func StandardVars(platformName, dirHere, objDir, srcDir string) map[string]string {
	exeSuffix := ""
	sep := "/"
	if platformName == grammar.PlatformWindows {
		exeSuffix = ".exe"
		sep = "\\"
	}
	return map[string]string{
		grammar.ExtVarDirHere:              dirHere,
		grammar.ExtVarExeSuffix:            exeSuffix,
		grammar.ExtVarOSSep:                sep,
		grammar.ExtVarBuildsysTargetObjDir: objDir,
		grammar.ExtVarBuildsysTargetSrcDir: srcDir,
	}
}

// Invoke resolves e's command line against vars and runs it, failing on
// non-zero exit (§4.7 "failing the module on non-zero exit"). workingDir is
// the importing module's directory; env carries any extra process
// environment entries (e.g. NativeModelEnvVar) beyond the inherited one.
func (e *Extension) Invoke(ctx context.Context, workingDir string, vars map[string]string, env map[string]string) error {
	cmdline, err := e.resolveCmdline(vars)
	if err != nil {
		return err
	}

	var cmd *exec.Cmd
	switch e.CallType {
	case grammar.ExtCallTypeShell:
		cmd = shellCommand(ctx, cmdline)
	case grammar.ExtCallTypeProcess:
		argv, err := splitCmdline(cmdline)
		if err != nil {
			return errs.Wrap(err, errs.DomainBuild, "ext-cmdline-parse-failed", "extension '%s' command line", e.Name)
		}
		if len(argv) == 0 {
			return errs.New(errs.DomainBuild, "ext-cmdline-empty", "extension '%s' resolved to an empty command line", e.Name)
		}
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	default:
		return errs.New(errs.DomainBuild, "ext-call-type-bad-enum", "ext_call_type '%s' is not one of %v", e.CallType, grammar.AllExtCallTypes)
	}

	cmd.Dir = workingDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(append([]string{}, os.Environ()...), envSlice(env)...)

	if err := cmd.Run(); err != nil {
		return errs.NewExit(errs.DomainBuild, "ext-invoke-failed", exitCode(err),
			"extension '%s' exited with an error: %v", e.Name, err)
	}
	return nil
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func shellCommand(ctx context.Context, cmdline string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", cmdline)
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", cmdline)
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return errs.DefaultExitCode
}

// splitCmdline tokenizes a process-mode command line on whitespace,
// honoring single/double-quoted segments so a substituted path containing
// spaces survives as one argv entry.
func splitCmdline(s string) ([]string, error) {
	var (
		args  []string
		cur   []rune
		quote rune
		inTok bool
	)
	flush := func() {
		if inTok {
			args = append(args, string(cur))
			cur = cur[:0]
			inTok = false
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur = append(cur, r)
			}
		case r == '\'' || r == '"':
			quote = r
			inTok = true
		case r == ' ' || r == '\t':
			flush()
		default:
			cur = append(cur, r)
			inTok = true
		}
	}
	if quote != 0 {
		return nil, errs.New(errs.DomainBuild, "ext-cmdline-unterminated-quote", "unterminated quote in command line")
	}
	flush()
	return args, nil
}

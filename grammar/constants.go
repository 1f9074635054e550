// Package grammar defines the closed set of description keys recognized by
// the loader (module and extension grammars), the platform/architecture
// refinement scheme, and the value-substitution pass.
package grammar

// Module types, the closed enumeration for the module_type key.
const (
	ModuleTypeExecutable = "executable"
	ModuleTypeLibStatic  = "lib-static"
	ModuleTypeLibShared  = "lib-shared"
	ModuleTypeComposite  = "composite"
	ModuleTypeZipFile    = "zip-file"
	ModuleTypeDownload   = "download"
)

// AllModuleTypes is the closed enumeration checked by the loader.
var AllModuleTypes = []string{
	ModuleTypeExecutable, ModuleTypeLibStatic, ModuleTypeLibShared,
	ModuleTypeComposite, ModuleTypeZipFile, ModuleTypeDownload,
}

// NoArchModuleTypes are module kinds with no per-architecture outputs.
var NoArchModuleTypes = []string{ModuleTypeZipFile, ModuleTypeDownload}

// Build configurations.
const (
	ConfigRelease = "release"
	ConfigDebug   = "debug"
)

// AllConfigs is the closed enumeration for --config.
var AllConfigs = []string{ConfigRelease, ConfigDebug}

// Target platforms.
const (
	PlatformWindows = "windows"
	PlatformLinux   = "linux"
	PlatformMacosx  = "macosx"
	PlatformPosix   = "posix" // alias covering linux + macosx
)

// AllRefinementPlatforms is the set grammar refinement keys are generated for.
var AllRefinementPlatforms = []string{PlatformWindows, PlatformLinux, PlatformMacosx, PlatformPosix}

// Target architectures.
const (
	ArchX86    = "x86"
	ArchX86_64 = "x86_64"
	ArchArm    = "arm"
	ArchArm64  = "arm64"
)

// AllArches is the closed enumeration of architecture refinements.
var AllArches = []string{ArchX86, ArchX86_64, ArchArm, ArchArm64}

// MingwArches is the subset of architectures MinGW toolchains may target.
var MingwArches = []string{ArchX86, ArchX86_64}

// Built-in evaluation-namespace identifiers the loader seeds before
// evaluating a description body (§4.1 step 6).
const (
	BuiltinTargetPlatform = "BUILDSYS_TARGET_PLATFORM"
	BuiltinToolsetName    = "BUILDSYS_TOOLSET_NAME"
	BuiltinSelfFileParts  = "self_file_parts"
	BuiltinSelfDirname    = "self_dirname"
)

// SubstProjectRoot is the only substitution token carried by the project
// substitutions table today (§4.1 step 8).
const SubstProjectRoot = "project_root"

// Well-known file names (§6). ModuleDescriptionFilename and
// ExtensionDescriptionFilename name the two description-file kinds the
// loader resolves inside a working directory.
const (
	ProjectConfigFile             = "minibuild.ini"
	ModuleDescriptionFilename     = "minibuild.mk"
	ExtensionDescriptionFilename  = "minibuild.ext"
)

// Extension (post-build) grammar constants.
const (
	ExtTypePostBuild     = "post-build"
	ExtTypeSpecPostBuild = "spec-post-build"
)

// AllExtTypes is the closed enumeration for ext_type.
var AllExtTypes = []string{ExtTypePostBuild, ExtTypeSpecPostBuild}

// Extension call types (§3 "ext_call_type is from the closed supported set").
const (
	ExtCallTypeShell   = "shell"
	ExtCallTypeProcess = "process"
)

// AllExtCallTypes is the closed enumeration for ext_call_type.
var AllExtCallTypes = []string{ExtCallTypeShell, ExtCallTypeProcess}

// Extension template variables (§4.7, §6).
const (
	ExtVarDirHere              = "DIR_HERE"
	ExtVarExeSuffix            = "EXE_SUFFIX"
	ExtVarOSSep                = "OS_SEP"
	ExtVarBuildsysTargetObjDir = "BUILDSYS_TARGET_OBJ_DIR"
	ExtVarBuildsysTargetSrcDir = "BUILDSYS_TARGET_SRC_DIR"
)

package grammar

// Shape is the container shape a grammar value must default to and decode
// into (§3 "container shape").
type Shape int

const (
	// ShapeScalar holds a single string/bool/int value, defaulting to unset.
	ShapeScalar Shape = iota
	// ShapeList holds an ordered string sequence, defaulting to empty.
	ShapeList
	// ShapeDict holds a string->string mapping, defaulting to empty.
	ShapeDict
)

// KeyDef describes one recognized grammar key: its container shape and
// whether it is subject to the substitution pass (§4.1 step 8).
type KeyDef struct {
	Shape      Shape
	Preprocess bool
}

// Module description grammar keys (§3).
const (
	KeyModuleType                = "module_type"
	KeyModuleName                = "module_name"
	KeyExeName                   = "exe_name"
	KeyBuildList                 = "build_list"
	KeySymbolVisibilityDefault   = "symbol_visibility_default"
	KeyWinConsole                = "win_console"
	KeyWinStackSize              = "win_stack_size"
	KeyWmain                     = "wmain"
	KeyAsmIsNasm                 = "nasm"
	KeyIncDirList                = "include_dir_list"
	KeyAsmIncDirList             = "asm_include_dir_list"
	KeySrcSearchDirList          = "src_search_dir_list"
	KeyAsmSearchDirList          = "asm_search_dir_list"
	KeyLinkDirList               = "lib_list"
	KeyPrebuiltLibList           = "prebuilt_lib_list"
	KeyMacosxFrameworkList       = "macosx_framework_list"
	KeyMacosxInstallNameOptions  = "macosx_install_name_options"
	KeyDefinitionsList           = "definitions"
	KeyAsmDefinitionsList        = "asm_definitions"
	KeyExportList                = "export"
	KeyExportDefFile             = "export_def_file"
	KeyExportWinapiOnly          = "export_winapi_only"
	KeyDisabledWarnings          = "disabled_warnings"
	KeyCompositeSpec             = "composite_spec"
	KeySpecFile                  = "spec_file"
	KeyZipFile                   = "zip_file"
	KeyPostBuild                 = "post_build"
	KeySpecPostBuild             = "spec_post_build"
	KeySpecFileEntails           = "spec_file_entails"
	KeyDownloadList              = "download_list"
	KeyExplicitDepends           = "explicit_depends"
	KeyZipSection                = "zip_section"
)

// commonModuleKeys is the base set of module grammar keys before the
// platform/arch refinement cross product is generated (§4.2).
var commonModuleKeys = map[string]KeyDef{
	KeyModuleType:               {ShapeScalar, false},
	KeyModuleName:               {ShapeScalar, false},
	KeyExeName:                  {ShapeScalar, false},
	KeyBuildList:                {ShapeList, false},
	KeyExportWinapiOnly:         {ShapeList, false},
	KeySymbolVisibilityDefault:  {ShapeScalar, false},
	KeyWinConsole:               {ShapeScalar, false},
	KeyWinStackSize:             {ShapeScalar, false},
	KeyWmain:                    {ShapeScalar, false},
	KeyAsmIsNasm:                {ShapeScalar, false},
	KeyIncDirList:               {ShapeList, true},
	KeyAsmIncDirList:            {ShapeList, true},
	KeySrcSearchDirList:         {ShapeList, true},
	KeyAsmSearchDirList:         {ShapeList, true},
	KeyLinkDirList:              {ShapeList, true},
	KeyPrebuiltLibList:          {ShapeList, false},
	KeyMacosxFrameworkList:      {ShapeList, false},
	KeyMacosxInstallNameOptions: {ShapeScalar, false},
	KeyDefinitionsList:          {ShapeList, false},
	KeyAsmDefinitionsList:       {ShapeList, false},
	KeyExportDefFile:            {ShapeScalar, true},
	KeyExportList:               {ShapeList, false},
	KeyDisabledWarnings:         {ShapeList, false},
	KeyCompositeSpec:            {ShapeList, true},
	KeySpecFile:                 {ShapeScalar, true},
	KeyZipFile:                  {ShapeScalar, false},
	KeyPostBuild:                {ShapeScalar, false},
	KeySpecPostBuild:            {ShapeScalar, false},
	KeySpecFileEntails:          {ShapeDict, true},
	KeyDownloadList:             {ShapeList, false},
	KeyExplicitDepends:          {ShapeList, true},
	KeyZipSection:               {ShapeScalar, true},
}

// refinedBaseKeys are the base keys that get a platform and platform+arch
// refinement cross product generated (§4.2): <key>_<platform>[_<arch>].
var refinedBaseKeys = []string{
	KeyBuildList, KeySrcSearchDirList, KeyAsmSearchDirList,
	KeyDefinitionsList, KeyAsmDefinitionsList,
}

// refinedPlatformOnlyKeys get only the <key>_<platform> refinement, no arch
// cross product (prebuilt_lib_list in the original grammar).
var refinedPlatformOnlyKeys = []string{KeyPrebuiltLibList}

// ModuleGrammar returns the full closed key->KeyDef map for module
// descriptions, including every generated platform/arch refinement.
func ModuleGrammar() map[string]KeyDef {
	out := make(map[string]KeyDef, len(commonModuleKeys)*4)
	for k, v := range commonModuleKeys {
		out[k] = v
	}
	for _, base := range refinedBaseKeys {
		def := commonModuleKeys[base]
		for _, plat := range AllRefinementPlatforms {
			key := base + "_" + plat
			out[key] = def
			for _, arch := range AllArches {
				out[key+"_"+arch] = def
			}
		}
	}
	for _, base := range refinedPlatformOnlyKeys {
		def := commonModuleKeys[base]
		for _, plat := range AllRefinementPlatforms {
			out[base+"_"+plat] = def
		}
	}
	return out
}

// Extension description grammar keys (§3, "Extension description").
const (
	KeyExtType               = "ext_type"
	KeyExtName               = "ext_name"
	KeyExtNativeDepends      = "ext_native_depends"
	KeyExtObjDirNativeAsVar  = "ext_obj_dir_native_as_var"
	KeyExtVarsRequired       = "ext_vars_required"
	KeyExtLocalVarsRequired  = "ext_local_vars_required"
	KeyExtCallType           = "ext_call_type"
	KeyExtCallCmdline        = "ext_call_cmdline"
)

// ExtensionGrammar returns the closed key->KeyDef map for extension
// descriptions (minibuild.ext).
func ExtensionGrammar() map[string]KeyDef {
	return map[string]KeyDef{
		KeyExtType:              {ShapeScalar, false},
		KeyExtName:              {ShapeScalar, false},
		KeyExtNativeDepends:     {ShapeList, true},
		KeyExtObjDirNativeAsVar: {ShapeList, true},
		KeyExtVarsRequired:      {ShapeList, false},
		KeyExtLocalVarsRequired: {ShapeList, false},
		KeyExtCallType:          {ShapeScalar, false},
		KeyExtCallCmdline:       {ShapeScalar, false},
	}
}

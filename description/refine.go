package description

import "github.com/bitswalk/minibuild/grammar"

// ResolveList concatenates every refinement of baseKey that applies to
// platform/arch, in increasing order of specificity: the neutral key first,
// then its posix-alias form (when platform is linux or macosx), then the
// platform-qualified form, then the posix+arch form, then the
// platform+arch form last (§4.2 "ordering preserves the order of
// specification within each scope, with neutral first, platform next,
// platform+arch last").
func ResolveList(desc *BuildDescription, baseKey, platform, arch string) []string {
	var out []string
	posixLike := platform == grammar.PlatformLinux || platform == grammar.PlatformMacosx

	out = append(out, desc.Get(baseKey).List()...)
	if posixLike {
		out = append(out, desc.Get(baseKey+"_"+grammar.PlatformPosix).List()...)
	}
	out = append(out, desc.Get(baseKey+"_"+platform).List()...)
	if posixLike {
		out = append(out, desc.Get(baseKey+"_"+grammar.PlatformPosix+"_"+arch).List()...)
	}
	out = append(out, desc.Get(baseKey+"_"+platform+"_"+arch).List()...)
	return out
}

// ResolvePlatformOnlyList concatenates the neutral and platform-qualified
// forms of a key that only refines by platform, not architecture
// (prebuilt_lib_list, §4.2).
func ResolvePlatformOnlyList(desc *BuildDescription, baseKey, platform string) []string {
	var out []string
	posixLike := platform == grammar.PlatformLinux || platform == grammar.PlatformMacosx

	out = append(out, desc.Get(baseKey).List()...)
	if posixLike {
		out = append(out, desc.Get(baseKey+"_"+grammar.PlatformPosix).List()...)
	}
	out = append(out, desc.Get(baseKey+"_"+platform).List()...)
	return out
}

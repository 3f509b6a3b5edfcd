package sandbox

import "fmt"

// containerRuntime captures the CLI differences between docker and podman
type containerRuntime struct {
	binary         string
	missingMessage func(image string) string
	identityArgs   func(uid, gid int) []string
}

var containerRuntimes = map[string]containerRuntime{
	"docker": {
		binary: "docker",
		missingMessage: func(string) string {
			return "SYSTEM ERROR: Docker is not installed or running.\n\n" +
				"Please install Docker Desktop to execute code safely.\n" +
				"Download: https://www.docker.com/products/docker-desktop"
		},
		identityArgs: func(uid, gid int) []string {
			return []string{"--user", fmt.Sprintf("%d:%d", uid, gid)}
		},
	},
	"podman": {
		binary: "podman",
		missingMessage: func(image string) string {
			return "SYSTEM ERROR: Podman is not installed or the runner image is missing.\n\n" +
				"Please install Podman and build the '" + image + "' image to execute code safely."
		},
		// Rootless podman maps the caller into the container with keep-id;
		// rootful podman runs as root already.
		identityArgs: func(uid, _ int) []string {
			if uid == 0 {
				return nil
			}
			return []string{"--userns=keep-id"}
		},
	},
}

// runtimeFor returns the profile for name, treating unknown names like docker
// with a different binary.
func runtimeFor(name string) containerRuntime {
	if rt, ok := containerRuntimes[name]; ok {
		return rt
	}
	rt := containerRuntimes["docker"]
	rt.binary = name
	return rt
}

// userArgs returns the identity flags for the calling user, or nil when the
// platform has no numeric ids.
func (rt containerRuntime) userArgs(uid, gid int) []string {
	if uid < 0 || gid < 0 {
		return nil
	}
	return rt.identityArgs(uid, gid)
}

package constants

// AppName is the executable name used in banners, lock files and log paths.
const AppName = "subsync"

// Tagline is printed under the version banner.
const Tagline = "Keep an extracted sub-directory in step with its upstream"

// TempRemotePrefix names the temporary remote wired to the filtered clone.
const TempRemotePrefix = "subsync-filtered"

// StateFileName is the default sync-state file, relative to the git dir.
const StateFileName = "subsync-state.yaml"

// LockFileName is the repository lock file, relative to the git dir.
const LockFileName = "subsync.lock"

// Banner is shown by --version.
const Banner = `            _                              
  ___ _   _| |__  ___ _   _ _ __   ___ 
 / __| | | | '_ \/ __| | | | '_ \ / __|
 \__ \ |_| | |_) \__ \ |_| | | | | (__ 
 |___/\__,_|_.__/|___/\__, |_| |_|\___|
                      |___/            `

// Package vfskit multiplexes several embedded filesystems behind one path
// namespace. Each drive is named by a prefix such as "SD:" or "SPI:" and
// served by a backend: a FAT medium, a log-structured flash device or a
// flat flash image.
//
// # Drives
//
// A [Registry] is built from a fixed table of [DriveSpec] rows. Paths are
// resolved by prefix, case-insensitively. With a single drive in the table a
// path without a prefix names that drive.
//
//	reg, err := vfskit.NewRegistry([]vfskit.DriveSpec{
//	    {Prefix: "SD:", Backend: vfskit.NewFATBackend(medium)},
//	    {Prefix: "SPI:", Backend: lfsBackend, Fixed: true, AutoFormat: true},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close()
//	if err := reg.Init(); err != nil {
//	    log.Printf("fixed drive failed: %v", err)
//	}
//
// Removable drives are mounted and unmounted with [Registry.Mount]. Fixed
// drives with AutoFormat are formatted by Init when they carry no
// filesystem.
//
// # Files and directories
//
//	f, err := reg.Open("SD:/log.txt", vfskit.OpenWrite|vfskit.OpenCreate|vfskit.OpenAppend)
//	f.Printf("boot %d\n", n)
//	f.Close()
//
//	dir, info, err := reg.FindFirst("SD:/", "*.TXT")
//	for err == nil {
//	    fmt.Println(info.Name, info.Size)
//	    info, err = dir.FindNext()
//	}
//
// Opening "/" lists the mounted drives. Entries carry an inode packing the
// drive index, the parent folder and the backend item number; see
// [InodeLayout].
//
// # Error Handling
//
// Every backend status is normalized onto the sentinel errors of this
// package. The raw code survives in [BackendError]:
//
//	_, err := reg.Open("SD:/missing.txt", vfskit.OpenRead)
//	if vfskit.IsNotExist(err) {
//	    // file does not exist
//	}
//
//	var be *vfskit.BackendError
//	if errors.As(err, &be) {
//	    fmt.Printf("%s status %d\n", be.Backend, be.Code)
//	}
//
// # Configuration
//
// [New] builds a registry from [Config], read from BEAVER_VFS_* environment
// variables by [GetConfig]. The drive table comes from a YAML, TOML or JSON
// file; backends are created by the factories registered with
// [RegisterBackend].
//
//	export BEAVER_VFS_DRIVES_FILE=/etc/vfs/drives.yaml
//	export BEAVER_VFS_LOG_LEVEL=debug
//
// # Watching
//
// [Registry.Watch] returns a [ChangeToken] that fires on the next change
// below a glob pattern; [OnChange] keeps re-arming one.
package vfskit

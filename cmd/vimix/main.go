// Command vimix boots one simulated kernel instance: it mounts a
// vimixfs/xv6fs image, allocates the physical page pool, execs an init
// binary into the first process-table slot, and, with --fork-demo,
// forks and reaps one child of init to exercise fork/exit/wait end to
// end. There is no CPU/trap loop here to actually run the loaded
// instructions -- platform boot/trap assembly is one of spec.md 1's
// named external collaborators, out of scope for the core -- so this
// command's job ends at standing the subsystems up and reporting what
// got wired, the hosted-CLI analogue of the teacher's kernel/chentry.go
// style boot-adjacent tooling (stdlib log, flag parsing, early exit on
// any setup failure).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"vimix/bio"
	"vimix/fd"
	vfs "vimix/fs"
	"vimix/kalloc"
	txlog "vimix/log"
	"vimix/proc"
	"vimix/spinlock"
)

const hart0 = spinlock.HartID(0)

var (
	imagePath  string
	totalBlock uint32
	pages      int
	initPath   string
	initArgs   []string
	forkDemo   bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "vimix",
	Short: "Boot a simulated vimix kernel instance against a disk image",
	RunE:  runVimix,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&imagePath, "image", "", "path to a disk image formatted by mkfs (required)")
	flags.Uint32Var(&totalBlock, "blocks", 20000, "total blocks in the image (must match what mkfs used)")
	flags.IntVar(&pages, "pages", 4096, "physical pages in the boot-time page pool")
	flags.StringVar(&initPath, "init", "", "path to the RISC-V ELF binary to exec as pid 1 (required)")
	flags.StringArrayVar(&initArgs, "arg", nil, "argv entry for the init binary (repeatable)")
	flags.BoolVar(&forkDemo, "fork-demo", false, "fork a child of init and reap it to exercise fork/exit/wait")
	flags.StringVar(&logFile, "log-file", "", "rotate console output into this file instead of stderr")
	rootCmd.MarkFlagRequired("image")
	rootCmd.MarkFlagRequired("init")
}

func setupLogger() *log.Logger {
	if logFile == "" {
		return log.New(os.Stderr, "vimix: ", log.LstdFlags)
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return log.New(rotator, "vimix: ", log.LstdFlags)
}

func runVimix(cmd *cobra.Command, args []string) error {
	klog := setupLogger()

	disk, err := bio.OpenFileDisk(imagePath, int(totalBlock), 0)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer disk.Close()

	cache := bio.NewCache(disk, 256)
	sb := vfs.ReadSuperblock(hart0, cache, 0)
	l := txlog.Open(cache, 0, uint64(sb.LogStart), uint64(sb.NLog))
	fsys := vfs.Open(0, sb, cache, l, 64)
	root := fsys.Get(hart0, 1)
	klog.Printf("mounted %s: format=%v uuid=%x", imagePath, sb.Format, sb.UUID)

	st := fsys.Statfs(hart0)
	klog.Printf("statfs: %d/%d blocks free, %d/%d inodes free", st.BlocksFree, st.Blocks, st.InodesFree, st.Inodes)

	alloc := kalloc.New(pages, false)
	klog.Printf("page pool: %d pages, %d free", alloc.Total(), alloc.Free_count())

	elfData, err := os.ReadFile(initPath)
	if err != nil {
		return fmt.Errorf("reading init binary: %w", err)
	}

	initProc, errc := proc.Boot(hart0, alloc, "init", elfData, initArgs)
	if errc != 0 {
		return fmt.Errorf("booting init: errno %d", errc)
	}
	initProc.Cwd = fd.MkRootCwd(fsys, root)
	klog.Printf("init booted: pid=%d entry=%#x sp=%#x", initProc.GetPid(), initProc.Tf.Epc, initProc.Tf.Sp)

	if forkDemo {
		childPid, errc := proc.Fork(alloc, initProc)
		if errc != 0 {
			return fmt.Errorf("fork: errno %d", errc)
		}
		child := proc.System.Find(childPid)
		klog.Printf("forked pid=%d from init", childPid)

		go proc.Exit(spinlock.HartID(1), child, 0)

		pid, status, errc := proc.Wait(hart0, initProc)
		if errc != 0 {
			return fmt.Errorf("wait: errno %d", errc)
		}
		klog.Printf("reaped pid=%d status=%d", pid, status)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

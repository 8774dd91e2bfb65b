package script

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"nmrfid/internal/models"
)

// Header holds the environment parameters written ahead of the operations.
type Header struct {
	// NProcess is the executor's worker count, 0 to leave the default.
	NProcess int

	// FIDPath is the raw acquisition to read.
	FIDPath string

	// DatasetPath is the dataset to create. Interactive scripts may leave it
	// empty.
	DatasetPath string

	// Dim restricts interactive scripts to one key. Empty means every key.
	Dim Key
}

// Arrayed lists the input files of a batch run.
type Arrayed struct {
	Files []string

	// Combine writes every file into one dataset, indexed by file position,
	// instead of one dataset per file.
	Combine bool
}

const (
	indent     = "    "
	datasetExt = ".nv"
)

// Interactive builds the script for previewing the current vector.
func Interactive(h Header, desc *models.AcquisitionDescriptor, snap Snapshot) string {
	var sb strings.Builder
	writeEnv(&sb, h)
	if h.FIDPath != "" {
		fmt.Fprintf(&sb, "FID(%s)\n", quote(h.FIDPath))
	}
	if h.DatasetPath != "" {
		fmt.Fprintf(&sb, "CREATE(%s)\n", quote(h.DatasetPath))
	}
	writeAcquisition(&sb, "", desc, snap)
	for _, e := range snap.Entries() {
		if h.Dim != "" && e.Key != h.Dim {
			continue
		}
		writeEntry(&sb, "", e)
	}
	sb.WriteString("run()\n")
	return sb.String()
}

// Batch builds the script that processes a whole dataset. With arr set,
// the operations run in a loop over arr.Files; out is then an output
// directory, or the combined dataset when arr.Combine is set.
func Batch(h Header, desc *models.AcquisitionDescriptor, snap Snapshot, out string, arr *Arrayed) string {
	var sb strings.Builder
	writeEnv(&sb, h)

	if arr == nil || len(arr.Files) == 0 {
		fmt.Fprintf(&sb, "FID(%s)\n", quote(h.FIDPath))
		fmt.Fprintf(&sb, "CREATE(%s)\n", quote(out))
		writeAcquisition(&sb, "", desc, snap)
		for _, e := range snap.Entries() {
			writeEntry(&sb, "", e)
		}
		sb.WriteString("run()\n")
		return sb.String()
	}

	sb.WriteString("fileNames = [\n")
	for _, f := range arr.Files {
		fmt.Fprintf(&sb, "%s%s,\n", indent, quote(f))
	}
	sb.WriteString("]\n")
	fmt.Fprintf(&sb, "outPath = %s\n", quote(out))
	sb.WriteString("for i, fileName in enumerate(fileNames):\n")
	fmt.Fprintf(&sb, "%sFID(fileName)\n", indent)
	if arr.Combine {
		fmt.Fprintf(&sb, "%sif i == 0:\n", indent)
		fmt.Fprintf(&sb, "%s%sCREATE(outPath, extra=%d)\n", indent, indent, len(arr.Files))
	} else {
		fmt.Fprintf(&sb, "%sCREATE(os.path.join(outPath, os.path.basename(os.path.dirname(fileName)) + '%s'))\n",
			indent, datasetExt)
	}
	writeAcquisition(&sb, indent, desc, snap)
	for _, e := range snap.Entries() {
		writeEntry(&sb, indent, e)
	}
	if arr.Combine {
		fmt.Fprintf(&sb, "%sWRITE(index=i)\n", indent)
	}
	fmt.Fprintf(&sb, "%srun()\n", indent)
	if arr.Combine {
		sb.WriteString("CLOSE()\n")
	}
	return sb.String()
}

// BatchFile builds the script for iteration i of an arrayed batch run. The
// runner executes these one at a time so a run can stop between files. In
// combine mode the first iteration creates the dataset and the last closes
// it.
func BatchFile(h Header, desc *models.AcquisitionDescriptor, snap Snapshot, out string, arr Arrayed, i int) (string, error) {
	if i < 0 || i >= len(arr.Files) {
		return "", fmt.Errorf("file index %d out of range for %d files", i, len(arr.Files))
	}
	var sb strings.Builder
	writeEnv(&sb, h)
	fmt.Fprintf(&sb, "FID(%s)\n", quote(arr.Files[i]))
	switch {
	case !arr.Combine:
		fmt.Fprintf(&sb, "CREATE(%s)\n", quote(OutputPath(out, arr.Files[i])))
	case i == 0:
		fmt.Fprintf(&sb, "CREATE(%s, extra=%d)\n", quote(out), len(arr.Files))
	}
	writeAcquisition(&sb, "", desc, snap)
	for _, e := range snap.Entries() {
		writeEntry(&sb, "", e)
	}
	if arr.Combine {
		fmt.Fprintf(&sb, "WRITE(index=%d)\n", i)
	}
	sb.WriteString("run()\n")
	if arr.Combine && i == len(arr.Files)-1 {
		sb.WriteString("CLOSE()\n")
	}
	return sb.String(), nil
}

// OutputPath derives the per-file dataset path of a non-combined batch run:
// the name of the directory holding the FID, with the dataset extension,
// inside outDir.
func OutputPath(outDir, fidPath string) string {
	fidPath = ToSlash(fidPath)
	name := path.Base(path.Dir(fidPath))
	if name == "." || name == "/" {
		name = strings.TrimSuffix(path.Base(fidPath), path.Ext(fidPath))
	}
	return path.Join(ToSlash(outDir), name+datasetExt)
}

// ToSlash converts both Windows and Unix separators to forward slashes.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func writeEnv(sb *strings.Builder, h Header) {
	sb.WriteString("import os\n")
	sb.WriteString("from pyproc import *\n")
	if h.NProcess > 0 {
		fmt.Fprintf(sb, "procOpts(nprocess=%d)\n", h.NProcess)
	}
}

// writeAcquisition emits the acquisition layout and the header-only
// operations.
func writeAcquisition(sb *strings.Builder, prefix string, desc *models.AcquisitionDescriptor, snap Snapshot) {
	if desc != nil {
		if len(desc.AcqOrder) > 0 {
			parts := make([]string, len(desc.AcqOrder))
			for i, t := range desc.AcqOrder {
				parts[i] = quote(t)
			}
			fmt.Fprintf(sb, "%sacqOrder(%s)\n", prefix, strings.Join(parts, ","))
		}
		if arrayed(desc) {
			parts := make([]string, len(desc.ArraySizes))
			for i, a := range desc.ArraySizes {
				parts[i] = strconv.Itoa(a)
			}
			fmt.Fprintf(sb, "%sacqarray(%s)\n", prefix, strings.Join(parts, ","))
		}
	}
	for _, op := range snap.Header {
		if OpName(op) == "acqOrder" && desc != nil && len(desc.AcqOrder) > 0 {
			continue
		}
		if OpName(op) == "acqarray" && desc != nil && arrayed(desc) {
			continue
		}
		fmt.Fprintf(sb, "%s%s\n", prefix, op)
	}
}

func writeEntry(sb *strings.Builder, prefix string, e Entry) {
	marker := "DIM"
	if e.Key.Kind() == 'P' {
		marker = "PDIM"
	}
	spec := e.Key.Spec()
	if e.Key.All() {
		spec = ""
	}
	fmt.Fprintf(sb, "%s%s(%s)\n", prefix, marker, spec)
	for _, op := range e.Ops {
		fmt.Fprintf(sb, "%s%s\n", prefix, op)
	}
}

func arrayed(desc *models.AcquisitionDescriptor) bool {
	for _, a := range desc.ArraySizes {
		if a > 1 {
			return true
		}
	}
	return false
}

func quote(s string) string {
	s = ToSlash(s)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

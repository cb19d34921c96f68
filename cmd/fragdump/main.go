// Command fragdump loads one fragment's metadata footer and prints a
// human-readable dump of it: format version, density, non-empty domain,
// tile/cell counts, and per-column statistics for every attribute named on
// the command line.
//
// There is no on-disk array-schema format in this module (out of scope per
// spec.md §1), so fragdump needs the fragment's schema described on the
// command line the same way a caller of fragment.Load would supply it.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"soltix.dev/fragstore/internal/config"
	"soltix.dev/fragstore/internal/dimension"
	"soltix.dev/fragstore/internal/domain"
	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/filter"
	"soltix.dev/fragstore/internal/fragment"
	"soltix.dev/fragstore/internal/fragmentinfo"
	"soltix.dev/fragstore/internal/logging"
	"soltix.dev/fragstore/internal/schema"
	"soltix.dev/fragstore/internal/vfs"
	"soltix.dev/fragstore/internal/workerpool"
)

func main() {
	fragmentURI := flag.String("fragment", "", "Fragment directory URI (required unless -array is set)")
	arrayURI := flag.String("array", "", "Array directory URI: dump every in-window fragment under it instead of a single fragment")
	tStart := flag.Uint64("t-start", 0, "Window start timestamp (with -array)")
	tEnd := flag.Uint64("t-end", math.MaxUint64, "Window end timestamp (with -array)")
	configPath := flag.String("config", "", "Path to an engine config file (yaml/json/toml); layered over defaults and FRAGSTORE_ env vars")
	dimsSpec := flag.String("dims", "", "Dimensions as \"name:type:lo:hi:extent;...\" (extent \"-\" for none)")
	attrsSpec := flag.String("attrs", "", "Attributes as \"name:type:cellvalnum:nullable;...\"")
	schemaName := flag.String("schema-name", "default", "Schema name to assume for v>=10 footers")
	writeVersion := flag.Uint("write-version", fragment.MinStoreVersion, "Write version to assume when building the schema")
	dense := flag.Bool("dense", false, "Treat the fragment's schema as dense")
	capacity := flag.Uint64("capacity", 0, "Sparse tile capacity (ignored for dense fragments)")
	columns := flag.String("columns", "", "Comma-separated attribute names to dump per-tile stats for (default: all)")

	flag.Parse()

	if *fragmentURI == "" && *arrayURI == "" {
		log.Fatal("Error: -fragment or -array is required")
	}
	if *dimsSpec == "" {
		log.Fatal("Error: -dims parameter is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error: loading config: %v\n", err)
	}

	dims, err := parseDims(*dimsSpec)
	if err != nil {
		log.Fatalf("Error: invalid -dims: %v\n", err)
	}
	attrs, err := parseAttrs(*attrsSpec)
	if err != nil {
		log.Fatalf("Error: invalid -attrs: %v\n", err)
	}

	dom, err := domain.New(dims, domain.RowMajor, domain.TileRowMajor, 0)
	if err != nil {
		log.Fatalf("Error: building domain: %v\n", err)
	}
	s := schema.New(*schemaName, dom, attrs, uint32(*writeVersion), *dense)

	res := fragment.NewResources(cfg, vfs.NewLocal(), filter.Default(), logging.NewDevelopment())
	opts := fragment.LoadOptions{
		Schemas:       map[string]schema.Schema{*schemaName: s},
		DefaultSchema: s,
	}

	names := attrNames(attrs)
	if *columns != "" {
		names = strings.Split(*columns, ",")
	}

	if *arrayURI != "" {
		dumpArray(res, cfg, *arrayURI, *tStart, *tEnd, opts, names, *dense, *capacity)
		return
	}

	fm, err := fragment.Load(context.Background(), res, *fragmentURI, opts)
	if err != nil {
		log.Fatalf("Error loading fragment: %v\n", err)
	}
	if !*dense && *capacity != 0 {
		fm.SetCapacity(*capacity)
	}

	dumpHeader(fm)
	dumpColumns(fm, names)
}

// dumpArray loads every in-window fragment under arrayURI via
// fragmentinfo.Load, bounding the parallel footer loads by
// cfg.Worker.PoolSize per spec.md §5's parallel_for.
func dumpArray(res fragment.Resources, cfg config.EngineConfig, arrayURI string, tStart, tEnd uint64, opts fragment.LoadOptions, names []string, dense bool, capacity uint64) {
	arrayDir := fragmentinfo.NewLocalArrayDirectory(res.FS, arrayURI)
	pool := workerpool.New(cfg.Worker.PoolSize)
	schemas := fragmentinfo.SchemaSource{Schemas: opts.Schemas, DefaultSchema: opts.DefaultSchema}

	fi, err := fragmentinfo.Load(context.Background(), res, arrayDir, tStart, tEnd, fragmentinfo.EncryptionNone, nil, schemas, pool)
	if err != nil {
		log.Fatalf("Error loading array %q: %v\n", arrayURI, err)
	}

	fmt.Printf("fragments:                %d\n", fi.FragmentNum())
	fmt.Printf("to_vacuum:                %d\n", len(fi.ToVacuum()))
	fmt.Printf("unconsolidated_metadata:  %d\n", fi.UnconsolidatedMetadataNum())

	for _, fm := range fi.Fragments() {
		if !dense && capacity != 0 {
			fm.SetCapacity(capacity)
		}
		fmt.Println()
		dumpHeader(fm)
		dumpColumns(fm, names)
	}
}

func dumpHeader(fm *fragment.FragmentMetadata) {
	fmt.Printf("uri:             %s\n", fm.URI())
	fmt.Printf("version:         %d\n", fm.Version())
	fmt.Printf("dense:           %v\n", fm.Dense())
	tr := fm.TimestampRange()
	fmt.Printf("timestamp_range: [%d, %d]\n", tr[0], tr[1])
	fmt.Printf("non_empty_domain: %s\n", formatNDRange(fm.Schema(), fm.NonEmptyDomain()))
	fmt.Printf("tile_num:        %d\n", fm.TileNum())
	fmt.Printf("cell_num:        %d\n", fm.CellNum())
}

func dumpColumns(fm *fragment.FragmentMetadata, names []string) {
	for _, name := range names {
		fmt.Printf("\ncolumn %q:\n", name)
		tileNum := fm.TileNum()
		for t := uint64(0); t < tileNum; t++ {
			size, err := fm.PersistedTileSize(name, t)
			if err != nil {
				fmt.Printf("  tile %d: %v\n", t, err)
				continue
			}
			line := fmt.Sprintf("  tile %d: persisted_size=%d", t, size)
			if min, err := fm.GetTileMinAs(name, t); err == nil {
				line += fmt.Sprintf(" min=%x", min)
			}
			if max, err := fm.GetTileMaxAs(name, t); err == nil {
				line += fmt.Sprintf(" max=%x", max)
			}
			if sum, err := fm.GetTileSum(name, t); err == nil {
				line += fmt.Sprintf(" sum=%d", sum)
			}
			if nc, err := fm.GetTileNullCount(name, t); err == nil {
				line += fmt.Sprintf(" null_count=%d", nc)
			}
			fmt.Println(line)
		}
	}
}

func attrNames(attrs []schema.Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Name()
	}
	return out
}

func formatNDRange(s schema.Schema, nd domain.NDRange) string {
	if nd.Empty() {
		return "(empty)"
	}
	dims := s.Dimensions()
	parts := make([]string, len(nd))
	for i, r := range nd {
		if i >= len(dims) {
			break
		}
		parts[i] = fmt.Sprintf("%s=[%s,%s]", dims[i].Name(), formatValue(dims[i].Datatype(), r.Low()), formatValue(dims[i].Datatype(), r.High()))
	}
	return strings.Join(parts, " ")
}

func formatValue(dt dimension.Datatype, b []byte) string {
	if dt == dimension.StringAscii {
		return string(b)
	}
	switch dt {
	case dimension.Float32:
		return strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), 'g', -1, 32)
	case dimension.Float64:
		return strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(b)), 'g', -1, 64)
	}
	raw := decodeLE(b)
	if dt.IsSignedInteger() {
		return strconv.FormatInt(signExtendLocal(raw, len(b)), 10)
	}
	return strconv.FormatUint(raw, 10)
}

func decodeLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func signExtendLocal(raw uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(raw))
	case 2:
		return int64(int16(raw))
	case 4:
		return int64(int32(raw))
	default:
		return int64(raw)
	}
}

// parseDims parses "name:type:lo:hi:extent;name2:..." into Dimensions.
func parseDims(spec string) ([]*dimension.Dimension, error) {
	var dims []*dimension.Dimension
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 5 {
			return nil, errs.Newf(errs.Invalid, "dimension spec %q: expected name:type:lo:hi:extent", part)
		}
		name, typeName, loStr, hiStr, extentStr := fields[0], fields[1], fields[2], fields[3], fields[4]
		dt, err := parseDatatype(typeName)
		if err != nil {
			return nil, err
		}
		var rng dimension.Range
		if dt == dimension.StringAscii {
			rng = dimension.NewVarRange([]byte(loStr), []byte(hiStr))
		} else {
			lo, err := encodeValue(dt, loStr)
			if err != nil {
				return nil, err
			}
			hi, err := encodeValue(dt, hiStr)
			if err != nil {
				return nil, err
			}
			rng = dimension.NewFixedRange(lo, hi)
		}
		var extent *dimension.Range
		if extentStr != "-" && dt != dimension.StringAscii {
			// Only extent.Low() is read by the per-datatype TileIdx
			// arithmetic; High() is unused but kept equal-width.
			width, err := encodeValue(dt, extentStr)
			if err != nil {
				return nil, err
			}
			e := dimension.NewFixedRange(width, width)
			extent = &e
		}
		d, err := dimension.New(name, dt, 1, rng, extent)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	if len(dims) == 0 {
		return nil, errs.New(errs.Invalid, "no dimensions parsed")
	}
	return dims, nil
}

// parseAttrs parses "name:type:cellvalnum:nullable;..." into Attributes.
func parseAttrs(spec string) ([]schema.Attribute, error) {
	if spec == "" {
		return nil, nil
	}
	var attrs []schema.Attribute
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 4 {
			return nil, errs.Newf(errs.Invalid, "attribute spec %q: expected name:type:cellvalnum:nullable", part)
		}
		name, typeName, cvnStr, nullableStr := fields[0], fields[1], fields[2], fields[3]
		dt, err := parseDatatype(typeName)
		if err != nil {
			return nil, err
		}
		cvn, err := strconv.ParseUint(cvnStr, 10, 32)
		if err != nil {
			return nil, errs.Wrap(errs.Invalid, err, "attribute spec "+part+": cellvalnum")
		}
		nullable, err := strconv.ParseBool(nullableStr)
		if err != nil {
			return nil, errs.Wrap(errs.Invalid, err, "attribute spec "+part+": nullable")
		}
		attrs = append(attrs, schema.NewAttribute(name, dt, uint32(cvn), nullable))
	}
	return attrs, nil
}

func parseDatatype(name string) (dimension.Datatype, error) {
	switch name {
	case "int8":
		return dimension.Int8, nil
	case "int16":
		return dimension.Int16, nil
	case "int32":
		return dimension.Int32, nil
	case "int64":
		return dimension.Int64, nil
	case "uint8":
		return dimension.Uint8, nil
	case "uint16":
		return dimension.Uint16, nil
	case "uint32":
		return dimension.Uint32, nil
	case "uint64":
		return dimension.Uint64, nil
	case "float32":
		return dimension.Float32, nil
	case "float64":
		return dimension.Float64, nil
	case "string_ascii":
		return dimension.StringAscii, nil
	default:
		return 0, errs.Newf(errs.Invalid, "unknown datatype %q", name)
	}
}

func encodeValue(dt dimension.Datatype, s string) ([]byte, error) {
	width := dt.ByteWidth()
	if dt.IsFloat() {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errs.Wrap(errs.Invalid, err, "parsing float value "+s)
		}
		b := make([]byte, width)
		if dt == dimension.Float32 {
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
		} else {
			binary.LittleEndian.PutUint64(b, math.Float64bits(f))
		}
		return b, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errs.Wrap(errs.Invalid, err, "parsing integer value "+s)
	}
	b := make([]byte, width)
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
	return b, nil
}

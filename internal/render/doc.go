// Package render turns a sequence into the C++ seed file consumed by the
// fuzzing harness, and parses such files back.
//
// A seed file starts with a boundary marker, the library includes and a
// fixed comment header:
//
//	=== zlib/id_000012.cc ===
//	#include <zlib.h>
//	//<ID> 12
//	//<Prompt> ["deflateInit_","deflate","deflateEnd"]
//	/*<Combination>: [int deflateInit_(z_streamp strm, int level, ...), ...] */
//	//<score> 40, nr_unique_branch: 3
//	//<Quality> {"density":0.4,"unique_branches":{...},...}
//
// followed by one function, test_<library>_api_sequence, whose body is the
// straight-line call sequence grouped by phase and which returns 66. The
// header lines are a fixed contract with the downstream corpus tooling.
package render

/*
Package ktx converts images into KTX 1.1 texture containers.

A container holds one or more layers (array elements, or six faces per
cube for cubemaps), each with an optional mip chain. Levels are padded to
the block size of the output format and encoded as RGBA8, BC1, BC1a, BC3,
BC7 or ASTC. The body is ordered mip-major, then element, then face, and
every imageSize record and face is aligned to 4 bytes.

Convert is the one-call path from image files to a written container.
Build produces an in-memory TextureSet for callers that decode images
themselves, and Open/Read parse containers back for inspection and tests.
An optional BlockCache stores encoded levels on disk keyed by their input
pixels so repeated builds skip the encoders.
*/
package ktx

// Package formats provides parsers for motion-capture file formats.
//
// A parsed file is plain data: a Skeleton whose joints are stored parent
// first and a Motion holding one channel vector per frame. Evaluating the
// clip is the job of package kinematics.
package formats

// Note: BVH HIERARCHY section is parsed in bvh_hierarchy.go
// Note: BVH MOTION section is parsed in bvh_motion.go
// Note: error types shared by both sections live in bvh_errors.go

// Package graph defines the scene graph produced by script evaluation.
// A scene is an immutable DAG of primitive solids, placements and groups.
// Each evaluation produces a new graph; node IDs are content addresses of
// their path so that re-evaluating an edited script keeps the IDs of
// unchanged parts, which in turn keeps their meshes cached.
package graph
